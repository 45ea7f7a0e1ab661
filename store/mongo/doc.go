// Package mongo implements store.Store on MongoDB using the official v2
// driver. Jobs are claimed with FindOneAndUpdate filtered on the queued
// state, and job names draw from a counters collection.
//
// The caller owns the *mongo.Client lifecycle; the store never disconnects
// it. Pass the database through the constructor:
//
//	client, _ := mongo.Connect(options.Client().ApplyURI(uri))
//	s := mongostore.New(client.Database("spool"))
//	s.Migrate(ctx)
package mongo
