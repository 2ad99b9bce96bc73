package assist

import (
	"fmt"

	"github.com/ramonehamilton/pickdesk/internal/models"
)

// NoImage is shown in place of a card image that failed to load.
const NoImage = "no image"

// ItemPanel is the presented item.
type ItemPanel struct {
	ItemID            models.ItemID
	Name              string
	Set               string
	Number            string
	Printing          string
	ConditionLanguage string
	Quantity          string // remaining/required
	ImageURL          string
	Placeholder       bool
	RemainingCards    int
	RemainingCopies   int
}

// Image returns the image source, or NoImage after a load failure.
func (p ItemPanel) Image() string {
	if p.Placeholder || p.ImageURL == "" {
		return NoImage
	}
	return p.ImageURL
}

// Progress returns the remaining totals line.
func (p ItemPanel) Progress() string {
	return fmt.Sprintf("%d cards / %d copies left", p.RemainingCards, p.RemainingCopies)
}

// Panel is everything the assisted picking screen shows.
type Panel struct {
	State           State
	Mode            models.Mode
	Item            *ItemPanel // nil unless presenting
	Completed       bool       // completion panel visible
	ControlsEnabled bool
	Exclusions      []models.ItemID
	Err             error // last failed round trip
}

// Panel returns the current presentation.
func (s *Session) Panel() Panel {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := Panel{
		State:           s.state,
		Mode:            s.mode,
		Completed:       s.state == Complete,
		ControlsEnabled: s.state == Presenting && !s.busy,
		Exclusions:      append([]models.ItemID(nil), s.exclude...),
		Err:             s.lastErr,
	}
	if s.state == Presenting && s.snapshot != nil && s.snapshot.Item != nil {
		it := s.snapshot.Item
		set := it.SetName
		if set == "" {
			set = it.SetCode
		}
		p.Item = &ItemPanel{
			ItemID:            it.ID,
			Name:              it.CardName,
			Set:               set,
			Number:            it.CollectorNumber,
			Printing:          it.Printing,
			ConditionLanguage: it.ConditionLanguage(),
			Quantity:          it.Quantity(),
			ImageURL:          it.ImageURL,
			Placeholder:       s.imageFailed,
			RemainingCards:    s.snapshot.RemainingCards,
			RemainingCopies:   s.snapshot.RemainingCopies,
		}
	}
	return p
}
