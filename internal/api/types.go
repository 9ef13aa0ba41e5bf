package api

import "github.com/samcharles93/pointernet/internal/pointer"

type PredictRequest struct {
	Inputs [][]int `json:"inputs"`
	// Seed makes the decode-time switch reproducible for this request.
	Seed *int64 `json:"seed,omitempty"`
	// Store keeps the prediction retrievable by id. Defaults to true.
	Store *bool `json:"store,omitempty"`
}

type PredictResponse struct {
	ID        string  `json:"id"`
	Object    string  `json:"object"`
	CreatedAt int64   `json:"created_at"`
	Inputs    [][]int `json:"inputs"`
	Outputs   [][]int `json:"outputs"`
	MaxLen    int     `json:"max_len"`
}

type ModelResponse struct {
	Object       string         `json:"object"`
	CheckpointID string         `json:"checkpoint_id,omitempty"`
	Version      string         `json:"version,omitempty"`
	Config       pointer.Config `json:"config"`
	Parameters   map[string]int `json:"parameters"`
	Total        int            `json:"total_parameters"`
}

type DeleteResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}
