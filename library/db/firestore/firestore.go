// Package firestore wraps the cloud firestore client.
package firestore

import (
	"context"

	fsSDK "cloud.google.com/go/firestore"
	"github.com/Laisky/errors/v2"
	"google.golang.org/api/option"
)

// DB firestore client bound to one project
type DB struct {
	*fsSDK.Client
	projectID string
}

// NewDB create firestore client
func NewDB(ctx context.Context, projectID string, opts ...option.ClientOption) (db *DB, err error) {
	if projectID == "" {
		return nil, errors.New("firestore project id is required")
	}

	db = &DB{
		projectID: projectID,
	}
	var cli *fsSDK.Client
	if cli, err = fsSDK.NewClient(ctx, projectID, opts...); err != nil {
		return nil, errors.Wrap(err, "create firestore client")
	}

	db.Client = cli
	return db, nil
}

// ProjectID returns the bound project
func (db *DB) ProjectID() string {
	return db.projectID
}
