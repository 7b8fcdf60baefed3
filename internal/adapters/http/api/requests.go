package api

type statusRequest struct {
	Status    string `json:"status"`
	ChangedBy string `json:"changed_by"`
	Reason    string `json:"reason"`
}

type annotateRequest struct {
	SuggestedKind string `json:"suggested_kind"`
	Notes         string `json:"notes"`
}

type archiveRequest struct {
	Days int `json:"days"`
}

type restoreRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type ingestionResponse struct {
	State string `json:"state"`
	Port  int    `json:"port,omitempty"`
}

type countResponse struct {
	Count int64 `json:"count"`
}
