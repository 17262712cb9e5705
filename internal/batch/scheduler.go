// Package batch accumulates converted articles into count- and memory-bounded
// batches for the output writer.
package batch

// ConvertedArticle is one transformed article awaiting durable write. Owned
// by the scheduler until its batch is flushed.
type ConvertedArticle struct {
	Title              string
	Body               string
	SourceOffset       int64
	EstimatedSizeBytes int64
}

// State is the scheduler's lifecycle state.
type State int

// Scheduler states.
const (
	StateAccumulating State = iota
	StateSealed
	StateDrained
)

// Batch is an ordered, sealed group of converted articles.
type Batch struct {
	// Seq is the zero-based batch sequence number within the run.
	Seq int

	// Articles preserve original record order.
	Articles []ConvertedArticle

	// EstimatedSizeBytes is the summed size proxy of all articles.
	EstimatedSizeBytes int64

	// StartOffset is the committed offset when the batch began accumulating;
	// a failed batch leaves the checkpoint here.
	StartOffset int64

	// EndOffset is the SourceOffset of the final article.
	EndOffset int64
}

// Scheduler accumulates articles into the current batch, sealing it the
// instant the count bound or the governor's memory estimate would be
// exceeded by the next candidate.
type Scheduler struct {
	maxCount int
	governor Governor

	state   State
	current Batch
	seq     int
	flushed int64 // Offset committed before the current batch.
}

// NewScheduler creates a scheduler with the given count bound, governor, and
// the resume offset the run started from.
func NewScheduler(maxCount int, governor Governor, startOffset int64) *Scheduler {
	s := &Scheduler{
		maxCount: maxCount,
		governor: governor,
		flushed:  startOffset,
	}
	s.current = Batch{StartOffset: startOffset}

	return s
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return s.state
}

// BufferedSize returns the governor's live estimate of buffered bytes.
func (s *Scheduler) BufferedSize() int64 {
	return s.current.EstimatedSizeBytes
}

// Pressure reports the governor's classification of the buffered size.
func (s *Scheduler) Pressure() PressureLevel {
	return s.governor.Pressure(s.current.EstimatedSizeBytes)
}

// Offer presents an article to the current batch. When accepted is false the
// memory ceiling forced a seal without the candidate: flush via Take, then
// re-offer. sealedNow is true whenever a batch is ready for Take, including
// the case where the accepted article filled the count bound.
func (s *Scheduler) Offer(article ConvertedArticle) (accepted, sealedNow bool) {
	if s.state != StateAccumulating {
		return false, s.state == StateSealed
	}

	count := len(s.current.Articles)

	// A non-empty batch seals first when the candidate would breach either
	// bound. An empty batch always accepts, so an article larger than the
	// ceiling still makes progress as a batch of one.
	if count > 0 {
		if count >= s.maxCount || !s.governor.Fits(s.current.EstimatedSizeBytes, article.EstimatedSizeBytes) {
			s.state = StateSealed

			return false, true
		}
	}

	s.current.Articles = append(s.current.Articles, article)
	s.current.EstimatedSizeBytes += article.EstimatedSizeBytes
	s.current.EndOffset = article.SourceOffset

	if len(s.current.Articles) >= s.maxCount || !s.governor.Fits(s.current.EstimatedSizeBytes, 0) {
		s.state = StateSealed

		return true, true
	}

	return true, false
}

// Take hands over the sealed batch and starts the next one. The caller owns
// the returned batch; after a successful flush it reports the new committed
// offset via Committed.
func (s *Scheduler) Take() *Batch {
	if s.state != StateSealed {
		return nil
	}

	batch := s.current
	batch.Seq = s.seq
	s.seq++

	s.current = Batch{StartOffset: s.flushed}
	s.state = StateAccumulating

	return &batch
}

// Committed records a successful flush up to offset; subsequent batches use
// it as their StartOffset.
func (s *Scheduler) Committed(offset int64) {
	s.flushed = offset
	s.current.StartOffset = offset
}

// Drain seals any non-empty final batch and moves to the terminal state.
// It returns the final batch, or nil when nothing is buffered.
func (s *Scheduler) Drain() *Batch {
	if s.state == StateDrained {
		return nil
	}

	var final *Batch

	if len(s.current.Articles) > 0 {
		s.state = StateSealed
		final = s.Take()
	}

	s.state = StateDrained

	return final
}
