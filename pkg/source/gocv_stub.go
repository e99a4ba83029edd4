//go:build !gocv

package source

import (
	"fmt"

	"github.com/menta2k/framecast/pkg/capture"
)

// openGoCV returns an error when built without the gocv tag.
func openGoCV(target string) (capture.Stream, error) {
	return nil, fmt.Errorf("%w: rebuild with -tags gocv", ErrBackendUnavailable)
}
