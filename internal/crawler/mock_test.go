package crawler

import (
	"context"
	"errors"
)

// fakeSession is a scripted browser session: navigation looks pages up by
// URL, frame content is served from a separate map.
type fakeSession struct {
	// url -> top document HTML
	pages map[string]string
	// url -> cafe_main frame HTML
	frames map[string]string
	// url -> forced navigation error
	navErr map[string]error

	clickErr map[string]error
	clicked  []string
	current  string
	closed   bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		pages:    map[string]string{},
		frames:   map[string]string{},
		navErr:   map[string]error{},
		clickErr: map[string]error{},
	}
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	if err, ok := s.navErr[url]; ok {
		return err
	}
	s.current = url
	return nil
}

func (s *fakeSession) HTML(ctx context.Context) (string, error) {
	html, ok := s.pages[s.current]
	if !ok {
		return "", errors.New("no document")
	}
	return html, nil
}

func (s *fakeSession) FrameHTML(ctx context.Context, name string) (string, error) {
	html, ok := s.frames[s.current]
	if !ok {
		return "", errors.New("frame not found")
	}
	return html, nil
}

func (s *fakeSession) Click(ctx context.Context, selector string) error {
	s.clicked = append(s.clicked, selector)
	if err, ok := s.clickErr[selector]; ok {
		return err
	}
	return nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}
