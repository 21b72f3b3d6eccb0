// Package deduplication decides whether incoming candidate data describes a
// person already in the store, and merges or creates accordingly.
//
// # Matching
//
// The store returns a pool of candidates that share at least one exact
// identity key with the payload. Each pool entry is scored by the first rule
// that fires, in this order:
//
//	linkedin_url_exact_match  0.95
//	email_exact_match         0.90
//	apollo_id_match           0.85
//	loxo_id_match             0.85
//	name_company_match        0.75  (same company, name similarity > threshold)
//	phone_match               0.70
//	no_match                  0
//
// The highest score wins. Among equal scores the oldest record by
// (created_at, id) wins and the number of other tied entries is reported in
// Result.Tied. A pool where nothing scored creates a new record unless
// Config.MergeOnZeroConfidence is set.
//
// # Merging
//
// MergeFields turns a payload into a typed partial update. Absent payload
// fields never clear data. Skills are unioned, employment history arrays are
// unioned by element value, raw source snapshots are replaced wholesale and
// last_synced_at is always stamped.
//
// # Concurrency
//
// An Engine is safe for concurrent use. The lookup and the write are not one
// transaction: merges carry the record version they were computed from and
// are re-run when the store reports ErrVersionConflict, but two concurrent
// creates for the same new person both succeed.
//
// # Usage
//
//	engine, err := deduplication.NewEngine(store, deduplication.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	result, err := engine.ProcessCandidate(ctx, payload)
//	if err != nil {
//	    return fmt.Errorf("process candidate: %w", err)
//	}
//	if result.Action == deduplication.ActionUpdated {
//	    log.Printf("merged into %s (%s, %.2f)", result.Candidate.ID, result.MatchedOn, result.Confidence)
//	}
package deduplication
