// Package postgres implements storage.Store on PostgreSQL.
//
// Schema provisioning lives outside this service. The stores expect the
// following tables (types illustrative):
//
//	copies   (id uuid primary key, isbn text not null, title text not null,
//	          author text not null, available boolean not null default true,
//	          added_at timestamptz not null)
//	loans    (id uuid primary key, copy_id uuid not null references copies(id),
//	          username text not null references members(username),
//	          borrowed_at timestamptz not null, due_at timestamptz not null,
//	          returned_at timestamptz)
//	waitlist (id uuid primary key, isbn text not null, username text not null,
//	          requested_at timestamptz not null, status text not null,
//	          notified_at timestamptz, unique (isbn, username))
//	members  (username text primary key, full_name text not null,
//	          email text not null unique, password_hash text not null,
//	          salt text not null, registered_at timestamptz not null)
package postgres
