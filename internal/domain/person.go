package domain

// Person is a missing-person record served by the external registry API.
type Person struct {
	ID               string `json:"id,omitempty"`
	MongoID          string `json:"_id,omitempty"`
	Name             string `json:"name"`
	Age              string `json:"age"`
	LastSeenDate     string `json:"last_seen_data"`
	LastSeenLocation string `json:"last_seen_location"`
	PhoneNumber      string `json:"phone_number"`
	AddInfo          string `json:"add_info"`
	Img              string `json:"img"`
}

// Key returns whichever id field the backend populated.
func (p Person) Key() string {
	if p.ID != "" {
		return p.ID
	}
	return p.MongoID
}
