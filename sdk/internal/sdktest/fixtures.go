package sdktest

// ErrorBody builds the structured failure document the API returns
func ErrorBody(code, message, requestID string) map[string]string {
	return map[string]string{
		"error":      code,
		"message":    message,
		"request_id": requestID,
	}
}

// Opportunity is a representative decide request
type Opportunity struct {
	Placement string   `json:"placement"`
	Context   string   `json:"context"`
	Keywords  []string `json:"keywords,omitempty"`
}

// Decision is a representative decide response
type Decision struct {
	AdID         string `json:"ad_id"`
	Headline     string `json:"headline"`
	ClickURL     string `json:"click_url"`
	ImpressionID string `json:"impression_id"`
}

// Event is a representative tracking event
type Event struct {
	Type         string `json:"type"`
	AdID         string `json:"ad_id"`
	ImpressionID string `json:"impression_id"`
}

// Fixtures holds canned payloads shared by tests
var Fixtures = struct {
	Opportunity Opportunity
	Decision    Decision
	Impression  Event
	Click       Event
}{
	Opportunity: Opportunity{
		Placement: "article-sidebar",
		Context:   "lightweight trail running shoes",
		Keywords:  []string{"running", "trail"},
	},
	Decision: Decision{
		AdID:         "ad_7d1f",
		Headline:     "Trail shoes, 20% off",
		ClickURL:     "https://ads.example.com/c/ad_7d1f",
		ImpressionID: "imp_0001",
	},
	Impression: Event{
		Type:         "impression",
		AdID:         "ad_7d1f",
		ImpressionID: "imp_0001",
	},
	Click: Event{
		Type:         "click",
		AdID:         "ad_7d1f",
		ImpressionID: "imp_0001",
	},
}
