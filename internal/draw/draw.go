// Package draw picks an activity from a bucket uniformly at random.
package draw

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/Andrew920528/vibe-30/internal/model"
)

// ErrNoActivities is returned when drawing from an empty list.
var ErrNoActivities = errors.New("bucket has no activities")

// Source returns a float in [0, 1).
type Source func() float64

// Picker draws with an injectable random source. The zero value uses math/rand/v2.
type Picker struct {
	src Source
}

func NewPicker(src Source) Picker { return Picker{src: src} }

// SelectRandom returns acts[floor(r*len)] for one sample r. Nothing is
// excluded and no history is kept.
func (p Picker) SelectRandom(acts []model.Activity) (model.Activity, error) {
	if len(acts) == 0 {
		return model.Activity{}, ErrNoActivities
	}
	src := p.src
	if src == nil {
		src = rand.Float64
	}
	i := int(math.Floor(src() * float64(len(acts))))
	// clamp sources that misbehave at the edges
	if i < 0 {
		i = 0
	}
	if i >= len(acts) {
		i = len(acts) - 1
	}
	return acts[i], nil
}

// SelectRandom draws with the default source.
func SelectRandom(acts []model.Activity) (model.Activity, error) {
	return Picker{}.SelectRandom(acts)
}
