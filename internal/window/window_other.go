//go:build !windows && !linux

package window

import "context"

type systemSource struct{}

func (systemSource) ActiveTitle(context.Context) (string, bool, error) {
	return "", false, ErrUnsupported
}

func (systemSource) VisibleTitles(context.Context) ([]string, error) {
	return nil, ErrUnsupported
}
