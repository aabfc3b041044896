// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package store is the persistence boundary for negotiation cases.

Store works over database/sql with any dialect from package db. A case row
carries a version equal to the number of history rows already written. Save
updates the row only if that version is unchanged and appends the new history
rows in the same transaction, so a lost race surfaces as ErrStaleCase rather
than a torn record.

	st := store.New(conn, db.SQLite)
	c, err := st.Load(ctx, id)
	next, err := machine.Counter(c, actor, "15", reason, time.Now())
	err = st.Save(ctx, next)

Results stores gate receipts in the request_receipt table.
*/
package store
