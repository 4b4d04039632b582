/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package firestoredb adapts the Cloud Firestore client to database.Client.
package firestoredb

import (
	"context"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tomoncle/firecrud/database"
	"github.com/tomoncle/firecrud/errors"
	"github.com/tomoncle/firecrud/types"
)

func init() {
	database.Register(func(ctx context.Context, cfg *database.Config, logger database.Logger) (database.Client, error) {
		return Open(ctx, &cfg.ConnectionConfig, logger)
	}, database.TypeFirestore)
}

// Client wraps a *firestore.Client.
type Client struct {
	fs     *firestore.Client
	logger database.Logger
}

var _ database.Client = (*Client)(nil)

// Open creates a Firestore client. An empty project id is detected from the
// environment; EmulatorHost routes the client to a local emulator.
func Open(ctx context.Context, cfg *database.ConnectionConfig, logger database.Logger) (*Client, error) {
	if logger == nil {
		logger = database.GetLogger()
	}
	if cfg.EmulatorHost != "" {
		if err := os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.EmulatorHost); err != nil {
			return nil, err
		}
	}
	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	databaseID := cfg.DatabaseID
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" && cfg.EmulatorHost == "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	fs, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	logger.Info("Firestore client created", "project", cfg.ProjectID, "database", databaseID, "emulator", cfg.EmulatorHost)
	return New(fs, logger), nil
}

// New wraps an existing Firestore client.
func New(fs *firestore.Client, logger database.Logger) *Client {
	if logger == nil {
		logger = database.GetLogger()
	}
	return &Client{fs: fs, logger: logger}
}

// Firestore returns the wrapped SDK client.
func (c *Client) Firestore() *firestore.Client { return c.fs }

func (c *Client) Collection(path string) database.CollectionRef {
	segments, err := database.SplitPath(path)
	if err != nil || len(segments)%2 == 0 {
		return nil
	}
	ref := c.fs.Collection(database.JoinPath(segments...))
	if ref == nil {
		return nil
	}
	return c.wrapCollection(ref, database.JoinPath(segments...))
}

func (c *Client) Doc(path string) database.DocumentRef {
	segments, err := database.SplitPath(path)
	if err != nil || len(segments)%2 == 1 {
		return nil
	}
	coll := c.Collection(database.JoinPath(segments[:len(segments)-1]...))
	if coll == nil {
		return nil
	}
	return coll.Doc(segments[len(segments)-1])
}

func (c *Client) GetAll(ctx context.Context, refs []database.DocumentRef) ([]types.Record, error) {
	fsRefs := make([]*firestore.DocumentRef, len(refs))
	for i, ref := range refs {
		fsRefs[i] = c.unwrapDoc(ref)
		if fsRefs[i] == nil {
			return nil, errors.NewPathError(ref.Path(), "not a document path")
		}
	}
	snaps, err := c.fs.GetAll(ctx, fsRefs)
	if err != nil {
		return nil, err
	}
	out := make([]types.Record, len(snaps))
	for i, snap := range snaps {
		if snap != nil && snap.Exists() {
			out[i] = snapshotRecord(snap)
		}
	}
	return out, nil
}

func (c *Client) BulkWriter(ctx context.Context) database.BulkWriter {
	return &bulkWriter{client: c, bw: c.fs.BulkWriter(ctx)}
}

func (c *Client) Close() error { return c.fs.Close() }

func (c *Client) unwrapDoc(ref database.DocumentRef) *firestore.DocumentRef {
	if d, ok := ref.(*documentRef); ok {
		return d.ref
	}
	return c.fs.Doc(ref.Path())
}

func (c *Client) wrapCollection(ref *firestore.CollectionRef, path string) *collectionRef {
	return &collectionRef{
		query:  &query{client: c, coll: ref, base: ref.Query},
		client: c,
		ref:    ref,
		path:   path,
	}
}

type collectionRef struct {
	*query

	client *Client
	ref    *firestore.CollectionRef
	path   string
}

func (c *collectionRef) ID() string   { return c.ref.ID }
func (c *collectionRef) Path() string { return c.path }

func (c *collectionRef) Doc(id string) database.DocumentRef {
	ref := c.ref.Doc(id)
	if ref == nil {
		return nil
	}
	return &documentRef{coll: c, ref: ref}
}

func (c *collectionRef) NewDoc() database.DocumentRef {
	return &documentRef{coll: c, ref: c.ref.NewDoc()}
}

func (c *collectionRef) Parent() database.DocumentRef {
	if c.ref.Parent == nil {
		return nil
	}
	segments, _ := database.SplitPath(c.path)
	parent := c.client.wrapCollection(c.ref.Parent.Parent, database.JoinPath(segments[:len(segments)-2]...))
	return &documentRef{coll: parent, ref: c.ref.Parent}
}

type documentRef struct {
	coll *collectionRef
	ref  *firestore.DocumentRef
}

func (d *documentRef) ID() string                     { return d.ref.ID }
func (d *documentRef) Path() string                   { return database.JoinPath(d.coll.path, d.ref.ID) }
func (d *documentRef) Parent() database.CollectionRef { return d.coll }

func (d *documentRef) Collection(id string) database.CollectionRef {
	ref := d.ref.Collection(id)
	if ref == nil {
		return nil
	}
	return d.coll.client.wrapCollection(ref, database.JoinPath(d.Path(), id))
}

func (d *documentRef) Get(ctx context.Context) (types.Record, error) {
	snap, err := d.ref.Get(ctx)
	if err != nil {
		return nil, d.mapError(err)
	}
	return snapshotRecord(snap), nil
}

func (d *documentRef) Set(ctx context.Context, data types.Record, merge bool) error {
	var opts []firestore.SetOption
	if merge {
		opts = append(opts, firestore.MergeAll)
	}
	_, err := d.ref.Set(ctx, storedData(data), opts...)
	return err
}

func (d *documentRef) Update(ctx context.Context, data types.Record) error {
	_, err := d.ref.Update(ctx, updates(data))
	return d.mapError(err)
}

func (d *documentRef) Delete(ctx context.Context) error {
	_, err := d.ref.Delete(ctx)
	return err
}

func (d *documentRef) mapError(err error) error {
	if err != nil && status.Code(err) == codes.NotFound {
		return errors.NewNotFoundError(d.coll.path, d.ref.ID)
	}
	return err
}

type bulkWriter struct {
	client *Client
	bw     *firestore.BulkWriter
	jobs   []bulkJob
}

type bulkJob struct {
	job *firestore.BulkWriterJob
	doc database.DocumentRef
}

func (b *bulkWriter) track(doc database.DocumentRef, job *firestore.BulkWriterJob, err error) error {
	if err != nil {
		return err
	}
	b.jobs = append(b.jobs, bulkJob{job: job, doc: doc})
	return nil
}

func (b *bulkWriter) Set(doc database.DocumentRef, data types.Record, merge bool) error {
	var opts []firestore.SetOption
	if merge {
		opts = append(opts, firestore.MergeAll)
	}
	job, err := b.bw.Set(b.client.unwrapDoc(doc), storedData(data), opts...)
	return b.track(doc, job, err)
}

func (b *bulkWriter) Update(doc database.DocumentRef, data types.Record) error {
	job, err := b.bw.Update(b.client.unwrapDoc(doc), updates(data))
	return b.track(doc, job, err)
}

func (b *bulkWriter) Delete(doc database.DocumentRef) error {
	job, err := b.bw.Delete(b.client.unwrapDoc(doc))
	return b.track(doc, job, err)
}

// End flushes the writer and waits for every job.
func (b *bulkWriter) End(ctx context.Context) error {
	b.bw.End()
	var errs []error
	for _, j := range b.jobs {
		if _, err := j.job.Results(); err != nil {
			if status.Code(err) == codes.NotFound {
				err = errors.NewNotFoundError(j.doc.Parent().Path(), j.doc.ID())
			}
			errs = append(errs, err)
		}
	}
	b.jobs = nil
	if len(errs) > 0 {
		b.client.logger.Warn("Bulk write finished with errors", "failed", len(errs))
	}
	return errors.Join(errs...)
}

func storedData(data types.Record) map[string]interface{} {
	out := data.Without(types.FieldID)
	if out == nil {
		return map[string]interface{}{}
	}
	return out
}

func updates(data types.Record) []firestore.Update {
	fields := data.Without(types.FieldID)
	out := make([]firestore.Update, 0, len(fields))
	for _, k := range sortedKeys(fields) {
		out = append(out, firestore.Update{Path: k, Value: fields[k]})
	}
	return out
}

func snapshotRecord(snap *firestore.DocumentSnapshot) types.Record {
	data := normalize(snap.Data())
	rec, _ := data.(map[string]interface{})
	return types.Record(rec).WithID(snap.Ref.ID)
}

// normalize replaces document references by their ids so references read
// back from Firestore can be resolved like plain identifiers.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case *firestore.DocumentRef:
		if t == nil {
			return nil
		}
		return t.ID
	case time.Time:
		return t.UTC()
	}
	return v
}
