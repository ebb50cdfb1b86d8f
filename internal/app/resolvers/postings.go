package resolvers

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/dalemusser/voluntahub/internal/app/policy/postingpolicy"
	"github.com/dalemusser/voluntahub/internal/app/system/apperr"
	"github.com/dalemusser/voluntahub/internal/app/system/auth"
	"github.com/dalemusser/voluntahub/internal/app/system/inputval"
	"github.com/dalemusser/voluntahub/internal/app/system/notify"
	"github.com/dalemusser/voluntahub/internal/app/system/timeouts"
	"github.com/dalemusser/voluntahub/internal/domain/models"
)

// CreatePostingInput carries the createPosting arguments.
//
// OwnerEmail is accepted for wire compatibility and ignored: a posting is
// always owned by the caller who creates it.
type CreatePostingInput struct {
	Title       string
	Date        string
	Description string
	Kind        string
	Image       *string
	OwnerEmail  *string
}

// validKind reports InvalidKind for a non-empty kind that is not exactly
// REQUEST or OFFER.
func validKind(k string) error {
	if k != "" && !models.Kind(k).Valid() {
		return apperr.ErrInvalidKind
	}
	return nil
}

// validatePatch rejects empty patches and blank required fields.
func validatePatch(p models.PostingPatch) error {
	if p.Kind != nil {
		if err := validKind(string(*p.Kind)); err != nil {
			return err
		}
	}
	if p.IsEmpty() {
		return apperr.ErrMissingFields
	}
	for _, f := range []*string{p.Title, p.Date, p.Description} {
		if f != nil && inputval.IsBlank(*f) {
			return apperr.ErrMissingFields
		}
	}
	if p.Kind != nil && *p.Kind == "" {
		return apperr.ErrMissingFields
	}
	return nil
}

// CreatePosting stores a new posting owned by the caller and announces it.
func (s *Service) CreatePosting(ctx context.Context, in CreatePostingInput) (*models.Posting, error) {
	if err := validKind(in.Kind); err != nil {
		return nil, err
	}
	if inputval.AnyBlank(in.Title, in.Date, in.Description, in.Kind) {
		return nil, apperr.ErrMissingFields
	}

	caller := auth.IdentityFrom(ctx)
	if err := postingpolicy.CanCreate(caller); err != nil {
		return nil, deny(ctx, err)
	}

	p := models.Posting{
		Title:       in.Title,
		OwnerEmail:  postingpolicy.Owner(caller),
		Date:        in.Date,
		Description: in.Description,
		Kind:        models.Kind(in.Kind),
	}
	if in.Image != nil {
		p.Image = *in.Image
	}

	sctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), s.log, "create posting")
	defer cancel()
	created, err := s.postings.Create(sctx, p)
	if err != nil {
		return nil, s.storeErr("create posting", err)
	}

	s.log.Info("posting created", zap.String("posting_id", created.ID.Hex()), zap.String("owner", created.OwnerEmail))
	s.notifier.Notify(ctx, notify.PostingCreated, notify.Created(created), created.OwnerEmail)
	return &created, nil
}

// ListPostings returns every posting to admins and the caller's own
// postings to everyone else, in creation order.
func (s *Service) ListPostings(ctx context.Context) ([]models.Posting, error) {
	caller := auth.IdentityFrom(ctx)
	if err := postingpolicy.CanList(caller); err != nil {
		return nil, deny(ctx, err)
	}
	return s.snapshotPostings(ctx, caller)
}

// GetPostingByID returns one posting and announces that it was opened.
func (s *Service) GetPostingByID(ctx context.Context, id string) (*models.Posting, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.loadPosting(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := postingpolicy.CanView(caller, *p); err != nil {
		return nil, deny(ctx, err)
	}

	s.notifier.Notify(ctx, notify.PostingSelected, notify.IDOnly(p.ID.Hex()), p.OwnerEmail)
	return p, nil
}

// UpdatePosting applies patch to the posting with id. Only the owner or an
// admin may update it.
func (s *Service) UpdatePosting(ctx context.Context, id string, patch models.PostingPatch) (*models.Posting, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.loadPosting(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := postingpolicy.CanModify(caller, *p); err != nil {
		return nil, deny(ctx, err)
	}
	return s.applyUpdate(ctx, caller, *p, patch)
}

// UpdatePostingByIndex applies patch to the posting at position index of
// the caller's listing (see ListPostings).
//
// The listing is read and then the chosen posting is updated by id; the two
// steps are not atomic, so a concurrent change can shift positions between
// them.
func (s *Service) UpdatePostingByIndex(ctx context.Context, index int, patch models.PostingPatch) (*models.Posting, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	if index < 0 {
		return nil, apperr.ErrIndexOutOfRange
	}
	caller, target, err := s.postingAt(ctx, index)
	if err != nil {
		return nil, err
	}
	return s.applyUpdate(ctx, caller, target, patch)
}

// DeletePosting removes the posting with id and returns the id. Only the
// owner or an admin may delete it.
func (s *Service) DeletePosting(ctx context.Context, id string) (string, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return "", err
	}
	p, err := s.loadPosting(ctx, id)
	if err != nil {
		return "", err
	}
	if err := postingpolicy.CanModify(caller, *p); err != nil {
		return "", deny(ctx, err)
	}
	return s.applyDelete(ctx, caller, *p)
}

// DeletePostingByIndex removes the posting at position index of the
// caller's listing and returns its id. Not atomic; see UpdatePostingByIndex.
func (s *Service) DeletePostingByIndex(ctx context.Context, index int) (string, error) {
	if index < 0 {
		return "", apperr.ErrIndexOutOfRange
	}
	caller, target, err := s.postingAt(ctx, index)
	if err != nil {
		return "", err
	}
	return s.applyDelete(ctx, caller, target)
}

func (s *Service) applyUpdate(ctx context.Context, caller *auth.Identity, p models.Posting, patch models.PostingPatch) (*models.Posting, error) {
	sctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), s.log, "update posting")
	defer cancel()
	updated, err := s.postings.Update(sctx, p.ID, patch)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, s.storeErr("update posting", err)
	}

	s.log.Info("posting updated", zap.String("posting_id", p.ID.Hex()), zap.String("by", caller.ID))
	s.notifier.Notify(ctx, notify.PostingUpdated, notify.Updated(p.ID.Hex(), patch), p.OwnerEmail, updated.OwnerEmail)
	return updated, nil
}

func (s *Service) applyDelete(ctx context.Context, caller *auth.Identity, p models.Posting) (string, error) {
	sctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), s.log, "delete posting")
	defer cancel()
	n, err := s.postings.Delete(sctx, p.ID)
	if err != nil {
		return "", s.storeErr("delete posting", err)
	}
	if n == 0 {
		return "", apperr.ErrNotFound
	}

	id := p.ID.Hex()
	s.log.Info("posting deleted", zap.String("posting_id", id), zap.String("by", caller.ID))
	s.notifier.Notify(ctx, notify.PostingDeleted, notify.IDOnly(id), p.OwnerEmail)
	s.audit.PostingDeleted(ctx, caller, p)
	return id, nil
}

// postingAt resolves index against a fresh snapshot of the caller's listing
// and re-checks that the caller may modify the chosen posting.
func (s *Service) postingAt(ctx context.Context, index int) (*auth.Identity, models.Posting, error) {
	caller := auth.IdentityFrom(ctx)
	if err := postingpolicy.CanList(caller); err != nil {
		return nil, models.Posting{}, deny(ctx, err)
	}
	list, err := s.snapshotPostings(ctx, caller)
	if err != nil {
		return nil, models.Posting{}, err
	}
	if err := checkIndex(index, len(list)); err != nil {
		return nil, models.Posting{}, err
	}
	target := list[index]
	if err := postingpolicy.CanModify(caller, target); err != nil {
		return nil, models.Posting{}, deny(ctx, err)
	}
	return caller, target, nil
}

func (s *Service) snapshotPostings(ctx context.Context, caller *auth.Identity) ([]models.Posting, error) {
	sctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), s.log, "list postings")
	defer cancel()
	list, err := s.postings.List(sctx, postingpolicy.ListScope(caller))
	if err != nil {
		return nil, s.storeErr("list postings", err)
	}
	return list, nil
}

func (s *Service) loadPosting(ctx context.Context, id string) (*models.Posting, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.getPosting(ctx, oid)
}

func (s *Service) getPosting(ctx context.Context, oid primitive.ObjectID) (*models.Posting, error) {
	sctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), s.log, "get posting")
	defer cancel()
	p, err := s.postings.GetByID(sctx, oid)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, s.storeErr("get posting", err)
	}
	return p, nil
}
