package shared

import jsoniter "github.com/json-iterator/go"

// ErrorBody is the JSON shape of every failed resource server response.
type ErrorBody struct {
	Error  int    `json:"error"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func (b ErrorBody) Marshal() ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(b)
}

func UnmarshalErrorBody(data []byte) (ErrorBody, error) {
	var body ErrorBody
	err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &body)
	return body, err
}
