// Package db keeps the Mongo round archive. Postgres stays the source of
// truth; the archive is a read-only history that expires on its own.
package db

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/avvvet/blackjack-services/internal/gamesvc/models"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const RoundsCollection = "rounds"

func ConnectToDB(mongoURI string) (*mongo.Database, error) {
	uri, err := url.Parse(mongoURI)
	if err != nil {
		return nil, fmt.Errorf("parse MongoDB URI: %w", err)
	}

	dbName := strings.TrimPrefix(uri.Path, "/")
	if dbName == "" {
		dbName = "blackjack"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	return client.Database(dbName), nil
}

func CreateTTLIndexForCollection(ctx context.Context, db *mongo.Database, collectionName string) error {
	collection := db.Collection(collectionName)

	indexModel := mongo.IndexModel{
		Keys:    bson.M{"expires_at": 1},
		Options: options.Index().SetExpireAfterSeconds(0), // 0 means that MongoDB will calculate the TTL based on the `ExpiresAt` field.
	}

	_, err := collection.Indexes().CreateOne(ctx, indexModel)
	return err
}

// RoundArchive stores one document per resolved round.
type RoundArchive struct {
	coll      *mongo.Collection
	retention time.Duration
}

// NewRoundArchive prepares the rounds collection and its TTL and lookup indexes.
func NewRoundArchive(ctx context.Context, db *mongo.Database, retention time.Duration) (*RoundArchive, error) {
	if err := CreateTTLIndexForCollection(ctx, db, RoundsCollection); err != nil {
		return nil, fmt.Errorf("create TTL index: %w", err)
	}

	coll := db.Collection(RoundsCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "table_id", Value: 1}, {Key: "round", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create round index: %w", err)
	}

	return &RoundArchive{coll: coll, retention: retention}, nil
}

type roundDoc struct {
	models.RoundRecord `bson:",inline"`
	Wagered            string    `bson:"wagered"`
	Paid               string    `bson:"paid"`
	HouseNet           string    `bson:"house_net"`
	ExpiresAt          time.Time `bson:"expires_at"`
}

func newRoundDoc(r models.RoundRecord, retention time.Duration) roundDoc {
	return roundDoc{
		RoundRecord: r,
		Wagered:     r.Wagered.StringFixed(2),
		Paid:        r.Paid.StringFixed(2),
		HouseNet:    r.Wagered.Sub(r.Paid).StringFixed(2),
		ExpiresAt:   r.CompletedAt.Add(retention),
	}
}

// ArchiveRound upserts so a retried archive write does not duplicate a round.
func (a *RoundArchive) ArchiveRound(ctx context.Context, r models.RoundRecord) error {
	filter := bson.M{"table_id": r.TableID, "round": r.Round}
	_, err := a.coll.ReplaceOne(ctx, filter, newRoundDoc(r, a.retention), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("archive round %d of table %d: %w", r.Round, r.TableID, err)
	}
	log.Debugf("archived round %d of table %d", r.Round, r.TableID)
	return nil
}

// Recent returns the latest archived rounds of a table, newest first.
func (a *RoundArchive) Recent(ctx context.Context, tableID int64, limit int64) ([]models.RoundRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "round", Value: -1}}).SetLimit(limit)
	cur, err := a.coll.Find(ctx, bson.M{"table_id": tableID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.RoundRecord
	for cur.Next(ctx) {
		var doc roundDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.RoundRecord)
	}
	return out, cur.Err()
}
