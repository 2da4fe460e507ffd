package transfer

type FacebookPostResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id,omitempty"`
}

type FacebookAttachedMedia struct {
	MediaFBID string `json:"media_fbid"`
}

type FacebookError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id"`
}

type FacebookErrorResponse struct {
	Error FacebookError `json:"error"`
}
