// Package types contains the read shapes returned by the prediction API.
package types

// MatchPrediction is the predicted and recorded outcome of one match.
type MatchPrediction struct {
	Team         string  `json:"team"`
	Opponent     string  `json:"opponent"`
	Prediction   string  `json:"prediction"`
	ActualResult string  `json:"actual_result"`
	Venue        string  `json:"venue"`
	Date         *string `json:"date"`
}

// Report is the outcome of predicting every historical match of a team.
type Report struct {
	Accuracy float64           `json:"accuracy"`
	Results  []MatchPrediction `json:"results"`
	ModelID  string            `json:"model_id,omitempty"`
}
