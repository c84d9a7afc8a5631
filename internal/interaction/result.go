package interaction

// Result is the outcome of visiting one profile.
type Result struct {
	ProfileURL string `json:"profileUrl"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	PostURL    string `json:"postUrl,omitempty"`
	Liked      bool   `json:"liked"`
	Commented  bool   `json:"commented"`
	Comment    string `json:"comment,omitempty"`
	IsReel     bool   `json:"isReel"`
	Error      string `json:"error,omitempty"`
}

// Failure returns a failed result for profileURL.
func Failure(profileURL, message string, err error) Result {
	r := Result{ProfileURL: profileURL, Message: message}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
