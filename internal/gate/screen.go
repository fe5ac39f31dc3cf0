package gate

import "encoding/json"

type Kind int

const (
	Loading Kind = iota
	Error
	NoInternet
	Success
)

func (k Kind) String() string {
	switch k {
	case Loading:
		return "loading"
	case Error:
		return "error"
	case NoInternet:
		return "no_internet"
	case Success:
		return "success"
	default:
		return "unknown"
	}
}

// Screen tells the host app what to show. URL is set only for Success.
type Screen struct {
	Kind Kind
	URL  string
}

func loading() Screen { return Screen{Kind: Loading} }

func failed() Screen { return Screen{Kind: Error} }

func offline() Screen { return Screen{Kind: NoInternet} }

func content(url string) Screen { return Screen{Kind: Success, URL: url} }

func (s Screen) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		State string `json:"state"`
		URL   string `json:"url,omitempty"`
	}{State: s.Kind.String(), URL: s.URL})
}
