package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/joseph-ayodele/cv-ingest/constants"
	"github.com/joseph-ayodele/cv-ingest/internal/common"
	"github.com/joseph-ayodele/cv-ingest/internal/entity"
	"github.com/joseph-ayodele/cv-ingest/internal/normalize"
)

func (p *Processor) finalize(ctx context.Context, r *run) error {
	normalize.ApplyCV(r.cv)
	r.cv.Personal.Email = entity.Str(r.email)
	r.em.Emit(constants.StageFinalizing, "Normalized names and dates", nil)

	if p.store == nil {
		return nil
	}
	if r.email != "" {
		exists, err := p.store.ExistsByEmail(ctx, r.email)
		if err != nil {
			return err
		}
		if exists {
			return &common.DuplicateError{Entity: "researcher", Key: r.email}
		}
	}

	sum := sha256.Sum256(r.doc.Data)
	saved, err := p.store.Create(ctx, r.cv, entity.Source{Name: r.doc.Name, ContentHash: hex.EncodeToString(sum[:])})
	if err != nil {
		return err
	}
	r.saved = saved
	r.em.Emit(constants.StageFinalizing, "Saved researcher record", map[string]any{
		"researcher_id": saved.ID.String(),
	})
	return nil
}
