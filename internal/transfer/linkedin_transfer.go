package transfer

// Asset registration (v2 assets API).

type LinkedInRegisterUploadRequest struct {
	RegisterUploadRequest LinkedInRegisterUpload `json:"registerUploadRequest"`
}

type LinkedInRegisterUpload struct {
	Recipes              []string                      `json:"recipes"`
	Owner                string                        `json:"owner"`
	ServiceRelationships []LinkedInServiceRelationship `json:"serviceRelationships"`
}

type LinkedInServiceRelationship struct {
	RelationshipType string `json:"relationshipType"`
	Identifier       string `json:"identifier"`
}

type LinkedInRegisterUploadResponse struct {
	Value struct {
		UploadMechanism struct {
			HTTPRequest struct {
				UploadURL string `json:"uploadUrl"`
			} `json:"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"`
		} `json:"uploadMechanism"`
		Asset string `json:"asset"`
	} `json:"value"`
}

// UGC posts.

type LinkedInUGCPost struct {
	Author          string                  `json:"author"`
	LifecycleState  string                  `json:"lifecycleState"`
	SpecificContent LinkedInSpecificContent `json:"specificContent"`
	Visibility      map[string]string       `json:"visibility"`
}

type LinkedInSpecificContent struct {
	ShareContent LinkedInShareContent `json:"com.linkedin.ugc.ShareContent"`
}

type LinkedInShareContent struct {
	ShareCommentary    LinkedInText    `json:"shareCommentary"`
	ShareMediaCategory string          `json:"shareMediaCategory"`
	Media              []LinkedInMedia `json:"media,omitempty"`
}

type LinkedInText struct {
	Text string `json:"text"`
}

type LinkedInMedia struct {
	Status string `json:"status"`
	Media  string `json:"media"`
}

type LinkedInPostResponse struct {
	ID string `json:"id"`
}

// Documents (REST API).

type LinkedInInitializeUploadRequest struct {
	InitializeUploadRequest LinkedInOwner `json:"initializeUploadRequest"`
}

type LinkedInOwner struct {
	Owner string `json:"owner"`
}

type LinkedInInitializeUploadResponse struct {
	Value struct {
		UploadURL string `json:"uploadUrl"`
		Document  string `json:"document"`
	} `json:"value"`
}

type LinkedInDocumentPost struct {
	Author                    string               `json:"author"`
	Commentary                string               `json:"commentary"`
	Visibility                string               `json:"visibility"`
	Distribution              LinkedInDistribution `json:"distribution"`
	Content                   LinkedInContent      `json:"content"`
	LifecycleState            string               `json:"lifecycleState"`
	IsReshareDisabledByAuthor bool                 `json:"isReshareDisabledByAuthor"`
}

type LinkedInDistribution struct {
	FeedDistribution               string   `json:"feedDistribution"`
	TargetEntities                 []string `json:"targetEntities"`
	ThirdPartyDistributionChannels []string `json:"thirdPartyDistributionChannels"`
}

type LinkedInContent struct {
	Media LinkedInContentMedia `json:"media"`
}

type LinkedInContentMedia struct {
	Title string `json:"title"`
	ID    string `json:"id"`
}
