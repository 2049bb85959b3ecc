package domain

// SearchResults groups cross-entity search hits per category. Each slice is
// capped independently so one noisy category cannot crowd out the others.
type SearchResults struct {
	Leads   []Lead   `json:"leads"`
	Clients []Client `json:"clients"`
	Deals   []Deal   `json:"deals"`
}
