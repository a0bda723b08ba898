package repository

import (
	"context"
	"errors"
	"redemption-gate/internal/model"
	apperrors "redemption-gate/pkg/errors"
	"redemption-gate/pkg/database"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongodbLedger implements LedgerRepository using MongoDB. Each TryConsume
// runs in one multi-document transaction: the redemption insert (guarded by
// the code_wallet_unique index) and the guarded $inc commit together, and
// concurrent writers on the same code document hit a write conflict that
// the driver retries.
type mongodbLedger struct {
	codes       *mongo.Collection
	redemptions *mongo.Collection
	uow         *database.UnitOfWork
	lockTimeout time.Duration
}

// NewMongoLedger creates a new MongoDB-based ledger
func NewMongoLedger(db *mongo.Database, uow *database.UnitOfWork, lockTimeout time.Duration) LedgerRepository {
	return &mongodbLedger{
		codes:       db.Collection(database.CodesCollection),
		redemptions: db.Collection(database.RedemptionsCollection),
		uow:         uow,
		lockTimeout: lockTimeout,
	}
}

// CreateCode creates a new redemption code
func (r *mongodbLedger) CreateCode(ctx context.Context, code *model.RedemptionCode) error {
	_, err := r.codes.InsertOne(ctx, code)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrCodeAlreadyExists
		}
		return err
	}

	return nil
}

// GetCode retrieves a code by its normalized value
func (r *mongodbLedger) GetCode(ctx context.Context, code string) (*model.RedemptionCode, error) {
	var rc model.RedemptionCode
	err := r.codes.FindOne(ctx, bson.M{"code": code}).Decode(&rc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrCodeNotFound
		}
		return nil, err
	}

	return &rc, nil
}

// ListRedemptions retrieves all redemptions recorded against a code
func (r *mongodbLedger) ListRedemptions(ctx context.Context, code string) ([]*model.Redemption, error) {
	cursor, err := r.redemptions.Find(ctx, bson.M{"code": code}, options.Find().SetSort(bson.D{{Key: "redeemed_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	redemptions := make([]*model.Redemption, 0)
	if err := cursor.All(ctx, &redemptions); err != nil {
		return nil, err
	}

	return redemptions, nil
}

// TryConsume atomically consumes one slot of code for walletAddress
func (r *mongodbLedger) TryConsume(ctx context.Context, code, walletAddress string) (model.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, r.lockTimeout)
	defer cancel()

	var outcome model.Outcome
	err := r.uow.WithTransaction(ctx, func(sc mongo.SessionContext) error {
		var rc model.RedemptionCode
		if err := r.codes.FindOne(sc, bson.M{"code": code}).Decode(&rc); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				outcome = model.Outcome{Status: model.StatusUnknownCode}
				return nil
			}
			return err
		}

		now := time.Now().UTC()
		redemption := &model.Redemption{
			ID:            uuid.NewString(),
			CodeID:        rc.ID,
			Code:          rc.Code,
			WalletAddress: walletAddress,
			Season:        rc.Season,
			RedeemedAt:    now,
		}
		if _, err := r.redemptions.InsertOne(sc, redemption); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				outcome = model.Outcome{Status: model.StatusAlreadyRedeemed, Capacity: rc.Capacity}
				return errRollback
			}
			return err
		}

		// Capacity is immutable, so the literal bound is safe in the filter.
		var updated model.RedemptionCode
		err := r.codes.FindOneAndUpdate(
			sc,
			bson.M{
				"_id":            rc.ID,
				"consumed_count": bson.M{"$lt": rc.Capacity},
			},
			bson.M{
				"$inc": bson.M{"consumed_count": 1},
				"$set": bson.M{"updated_at": now},
			},
			options.FindOneAndUpdate().
				SetReturnDocument(options.After).
				SetUpsert(false),
		).Decode(&updated)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				outcome = model.Outcome{Status: model.StatusCapacityExhausted, Capacity: rc.Capacity}
				return errRollback
			}
			return err
		}

		outcome = model.Outcome{
			Status:     model.StatusRedeemed,
			Remaining:  updated.Remaining(),
			Capacity:   rc.Capacity,
			Redemption: redemption,
		}
		return nil
	})
	if err != nil && !errors.Is(err, errRollback) {
		return model.Outcome{}, transient("try consume", err)
	}

	return outcome, nil
}
