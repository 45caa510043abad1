package storage

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/Laisky/errors/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	fsdb "github.com/Laisky/sparkboard/library/db/firestore"
)

var (
	_ Backend       = (*Firestore)(nil)
	_ AtomicUpdater = (*Firestore)(nil)
)

// DefaultFirestoreCollection is used when no collection is configured
const DefaultFirestoreCollection = "sparkboard"

// FirestoreMaxImageBytes caps attached images on this backend. The whole
// post collection lives in one document, which firestore limits to 1 MiB,
// and data URIs grow by a third when base64 encoded.
const FirestoreMaxImageBytes int64 = 700 * 1024

// firestoreItem is the document stored for each key
type firestoreItem struct {
	Value string `firestore:"value"`
}

// Firestore stores every key as one document of a collection.
type Firestore struct {
	db  *fsdb.DB
	col string
}

// NewFirestore wraps a firestore client
func NewFirestore(db *fsdb.DB, collection string) *Firestore {
	if collection == "" {
		collection = DefaultFirestoreCollection
	}

	return &Firestore{db: db, col: collection}
}

// Name implements Backend
func (f *Firestore) Name() string { return "firestore" }

func (f *Firestore) ref(key string) *firestore.DocumentRef {
	return f.db.Collection(f.col).Doc(key)
}

// Get implements Backend
func (f *Firestore) Get(ctx context.Context, key string) (string, error) {
	docu, err := f.ref(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", errors.Wrapf(ErrNotFound, "key %s", key)
		}
		return "", errors.Wrapf(err, "load docu %s", key)
	}

	item := new(firestoreItem)
	if err = docu.DataTo(item); err != nil {
		return "", errors.Wrap(err, "convert gcp docu to go struct")
	}

	return item.Value, nil
}

// Set implements Backend
func (f *Firestore) Set(ctx context.Context, key, value string) error {
	if _, err := f.ref(key).Set(ctx, &firestoreItem{Value: value}); err != nil {
		return errors.Wrapf(err, "save docu %s", key)
	}

	return nil
}

// Update implements AtomicUpdater in a firestore transaction
func (f *Firestore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	ref := f.ref(key)
	err := f.db.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil && doc == nil {
			return errors.Wrap(err, "load docu")
		}

		item := new(firestoreItem)
		if doc.Exists() {
			if err = doc.DataTo(item); err != nil {
				return errors.Wrap(err, "convert gcp docu to go struct")
			}
		}

		next, err := fn(item.Value, doc.Exists())
		if err != nil {
			return errors.WithStack(err)
		}

		return tx.Set(ref, &firestoreItem{Value: next})
	})

	return errors.Wrapf(err, "update %s", key)
}
