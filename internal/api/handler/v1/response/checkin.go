package response

type BackfillResponse struct {
	Filled int `json:"filled"`
}

type RosterCheckResponse struct {
	Confirmed bool `json:"confirmed"`
}
