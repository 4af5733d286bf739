package memory

import "github.com/hashicorp/go-memdb"

const (
	tblPosts        = "posts"
	tblPostVersions = "post_versions"
)

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblPosts: {
			Name: tblPosts,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.IntFieldIndex{Field: "ID"},
				},
			},
		},
		tblPostVersions: {
			Name: tblPostVersions,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.IntFieldIndex{Field: "ID"},
				},
				"post_id": {
					Name:    "post_id",
					Indexer: &memdb.IntFieldIndex{Field: "PostID"},
				},
				// memdb не проверяет уникальность вторичных индексов сам,
				// поэтому InsertVersion проверяет пару (post_id, version) перед вставкой.
				"post_id_version": {
					Name:   "post_id_version",
					Unique: true,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.IntFieldIndex{Field: "PostID"},
							&memdb.IntFieldIndex{Field: "Version"},
						},
					},
				},
			},
		},
	},
}
