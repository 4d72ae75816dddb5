package skills

import (
	"context"
	"time"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/a2a"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/assoc"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/models"
)

// associationSubmit persists a signed association. The digest is
// always re-derived from the submitted fields; a supplied digest is
// checked, never trusted. Every present signature must recover to its
// expected party.
func (d Deps) associationSubmit(ctx context.Context, req *a2a.Request) (*a2a.Result, error) {
	initiator, aerr := stringField(req.Payload, "initiator")
	if aerr != nil {
		return nil, aerr
	}
	approver, aerr := stringField(req.Payload, "approver")
	if aerr != nil {
		return nil, aerr
	}
	validAt, aerr := intField(req.Payload, "validAt")
	if aerr != nil {
		return nil, aerr
	}
	validUntil := optInt(req.Payload, "validUntil", 0)
	interfaceID := optString(req.Payload, "interfaceId")
	if interfaceID == "" {
		interfaceID = "0x00000000"
	}

	rec, err := assoc.ParseRecord(initiator, approver, uint64(validAt), uint64(validUntil),
		interfaceID, optString(req.Payload, "data"))
	if err != nil {
		return nil, mapError(err)
	}

	if supplied := optString(req.Payload, "digest"); supplied != "" {
		if err := rec.CheckDigest(supplied); err != nil {
			return nil, mapError(err)
		}
	}
	digest := rec.Digest()

	initiatorSig := optString(req.Payload, "initiatorSignature")
	approverSig := optString(req.Payload, "approverSignature")
	if initiatorSig == "" && approverSig == "" {
		return nil, a2a.Validation("at least one signature is required")
	}
	if initiatorSig != "" {
		if err := assoc.VerifySigner(digest, initiatorSig, rec.Initiator); err != nil {
			return nil, mapError(err)
		}
	}
	if approverSig != "" {
		if err := assoc.VerifySigner(digest, approverSig, rec.Approver); err != nil {
			return nil, mapError(err)
		}
	}

	record := &models.Association{
		ID:                 digest.Hex(),
		Initiator:          rec.Initiator.Hex(),
		Approver:           rec.Approver.Hex(),
		ValidAt:            uint64(validAt),
		ValidUntil:         uint64(validUntil),
		InterfaceID:        interfaceID,
		Data:               optString(req.Payload, "data"),
		InitiatorSignature: initiatorSig,
		ApproverSignature:  approverSig,
	}
	if record.Data == "" {
		record.Data = "0x"
	}
	if err := d.DB.PutAssociation(ctx, record); err != nil {
		return nil, mapError(err)
	}

	return a2a.Created(map[string]any{
		"association": map[string]any{
			"id":         record.ID,
			"initiator":  record.Initiator,
			"approver":   record.Approver,
			"validAt":    record.ValidAt,
			"validUntil": record.ValidUntil,
			"complete":   record.InitiatorSignature != "" && record.ApproverSignature != "",
			"createdAt":  time.Now().Format(time.RFC3339),
		},
	}), nil
}
