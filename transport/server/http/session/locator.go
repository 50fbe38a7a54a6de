package session

import (
	"fmt"
	"net/http"
	"net/url"
)

// Locator resolves and assigns a session id at a configured Location,
// shared by the HTTP-based transports (streamable, sse) so they agree on
// one lookup convention. Locate reads a header or query location; Set
// supports query locations only.
type Locator interface {
	Locate(location *Location, request *http.Request) (string, error)
	Set(location *Location, values url.Values, id string) error
}

type locator struct{}

// NewLocator returns the default header/query Locator.
func NewLocator() Locator {
	return &locator{}
}

func (l *locator) Locate(location *Location, request *http.Request) (string, error) {
	if request == nil {
		return "", fmt.Errorf("request was nil")
	}
	if location == nil {
		return "", fmt.Errorf("location was nil")
	}
	switch location.Kind {
	case "header":
		return request.Header.Get(location.Name), nil
	case "query":
		return request.URL.Query().Get(location.Name), nil
	}
	return "", fmt.Errorf("unsupported sessionIdLocation kind: %s for name: %s", location.Kind, location.Name)
}

func (l *locator) Set(location *Location, values url.Values, id string) error {
	if values == nil {
		return fmt.Errorf("values were nil")
	}
	if location == nil {
		return fmt.Errorf("location was nil")
	}
	switch location.Kind {
	case "query":
		values.Set(location.Name, id)
	default:
		return fmt.Errorf("unsupported sessionIdLocation kind: %s for name: %s", location.Kind, location.Name)
	}
	return nil
}
