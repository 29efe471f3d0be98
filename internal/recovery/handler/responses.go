package handler

import (
	"carrieralpha/internal/recovery/models"
	"carrieralpha/internal/recovery/service"
	id "carrieralpha/pkg/domain"
	dErrors "carrieralpha/pkg/domain-errors"
)

// AuditResponse wraps an audit outcome for the wire.
type AuditResponse struct {
	Audit        *models.AuditResult `json:"audit"`
	Claim        *models.Claim       `json:"claim,omitempty"`
	Recorded     bool                `json:"recorded"`
	ClaimCreated bool                `json:"claim_created"`
}

func toAuditResponse(out *service.AuditOutcome) AuditResponse {
	return AuditResponse{
		Audit:        out.Audit,
		Claim:        out.Claim,
		Recorded:     out.Recorded,
		ClaimCreated: out.ClaimCreated,
	}
}

type TransitionsResponse struct {
	ClaimID     id.ClaimID               `json:"claim_id"`
	Transitions []models.ClaimTransition `json:"transitions"`
}

// BatchItem is one claim's outcome in a submit-batch response.
type BatchItem struct {
	ClaimID          id.ClaimID        `json:"claim_id"`
	Claim            *models.Claim     `json:"claim,omitempty"`
	Error            string            `json:"error,omitempty"`
	ErrorDescription string            `json:"error_description,omitempty"`
	Details          map[string]string `json:"details,omitempty"`
}

type BatchSubmitResponse struct {
	Submitted int         `json:"submitted"`
	Failed    int         `json:"failed"`
	Results   []BatchItem `json:"results"`
}

func toBatchResponse(results []service.BatchSubmitResult) BatchSubmitResponse {
	resp := BatchSubmitResponse{Results: make([]BatchItem, 0, len(results))}
	for _, r := range results {
		item := BatchItem{ClaimID: r.ClaimID, Claim: r.Claim}
		if r.Err != nil {
			resp.Failed++
			code := dErrors.CodeOf(r.Err)
			item.Error = string(code)
			if code != dErrors.CodeInternal {
				item.ErrorDescription = r.Err.Error()
				item.Details = dErrors.DetailsOf(r.Err)
			}
		} else {
			resp.Submitted++
		}
		resp.Results = append(resp.Results, item)
	}
	return resp
}
