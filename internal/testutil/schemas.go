package testutil

import "github.com/roach88/orql/internal/schema"

// Schemas returns the fixture registry shared by package tests:
//
//	role  hasMany       user  (user.role_id)
//	user  belongsTo     role  (required)
//	user  hasOne        info  (info.user_id)
//	user  hasMany       post  (post.author_id)
//	post  belongsTo     user  as author (required)
//	post  belongsToMany tag   via post_tag
//	tag   belongsToMany post  via post_tag
//
// A fresh registry is built on every call so tests never share state.
func Schemas() *schema.Registry {
	return schema.MustRegistry(Defs()...)
}

// Defs returns the fixture entity definitions.
func Defs() []schema.EntityDef {
	return []schema.EntityDef{
		{
			Name: "role",
			Columns: []schema.ColumnDef{
				{Name: "id"},
				{Name: "name"},
			},
			Associations: []schema.AssociationDef{
				{Name: "users", Type: schema.HasMany, Ref: "user", RefKey: "role_id"},
			},
		},
		{
			Name: "user",
			Columns: []schema.ColumnDef{
				{Name: "id"},
				{Name: "name"},
				{Name: "roleId", RefKey: true},
			},
			Associations: []schema.AssociationDef{
				{Name: "role", Type: schema.BelongsTo, Ref: "role", Required: true, RefKey: "role_id"},
				{Name: "info", Type: schema.HasOne, Ref: "info", RefKey: "user_id"},
				{Name: "posts", Type: schema.HasMany, Ref: "post", RefKey: "author_id"},
			},
		},
		{
			Name: "info",
			Columns: []schema.ColumnDef{
				{Name: "id"},
				{Name: "bio"},
				{Name: "userId", RefKey: true},
			},
		},
		{
			Name: "post",
			Columns: []schema.ColumnDef{
				{Name: "id"},
				{Name: "title"},
				{Name: "authorId", RefKey: true},
			},
			Associations: []schema.AssociationDef{
				{Name: "author", Type: schema.BelongsTo, Ref: "user", Required: true, RefKey: "author_id"},
				{Name: "tags", Type: schema.BelongsToMany, Ref: "tag", Middle: "post_tag", MiddleKey: "post_id", RefMiddleKey: "tag_id"},
			},
		},
		{
			Name: "tag",
			Columns: []schema.ColumnDef{
				{Name: "id"},
				{Name: "name"},
			},
			Associations: []schema.AssociationDef{
				{Name: "posts", Type: schema.BelongsToMany, Ref: "post", Middle: "post_tag", MiddleKey: "tag_id", RefMiddleKey: "post_id"},
			},
		},
	}
}

// DDL creates the fixture tables in SQLite.
const DDL = `
CREATE TABLE role (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE user (id INTEGER PRIMARY KEY, name TEXT NOT NULL, role_id INTEGER NOT NULL REFERENCES role(id));
CREATE TABLE info (id INTEGER PRIMARY KEY, bio TEXT, user_id INTEGER REFERENCES user(id));
CREATE TABLE post (id INTEGER PRIMARY KEY, title TEXT NOT NULL, author_id INTEGER NOT NULL REFERENCES user(id));
CREATE TABLE tag (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE post_tag (post_id INTEGER NOT NULL REFERENCES post(id), tag_id INTEGER NOT NULL REFERENCES tag(id));
`

// Seed inserts a small deterministic data set matching DDL.
//
//	roles: 1 admin, 2 guest
//	users: 1 alice (admin), 2 bob (admin), 3 carol (guest)
//	info:  alice only
//	posts: 1 "hello" and 2 "again" by alice, 3 "hi" by carol
//	tags:  1 go on posts 1 and 3, 2 sql on post 1
const Seed = `
INSERT INTO role (id, name) VALUES (1, 'admin'), (2, 'guest');
INSERT INTO user (id, name, role_id) VALUES (1, 'alice', 1), (2, 'bob', 1), (3, 'carol', 2);
INSERT INTO info (id, bio, user_id) VALUES (1, 'likes go', 1);
INSERT INTO post (id, title, author_id) VALUES (1, 'hello', 1), (2, 'again', 1), (3, 'hi', 3);
INSERT INTO tag (id, name) VALUES (1, 'go'), (2, 'sql');
INSERT INTO post_tag (post_id, tag_id) VALUES (1, 1), (1, 2), (3, 1);
`
