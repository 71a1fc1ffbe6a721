package project

import (
	"context"

	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/txn"
	"github.com/kurobon/vex/internal/verr"
)

func init() {
	Register(Entry{
		Name: "author:add",
		Schema: ArgSchema{Params: []ParamSpec{
			{Name: "uuid", Kind: KindSingle, Required: true},
			{Name: "name", Kind: KindSingle, Required: true},
			{Name: "email", Kind: KindSingle},
		}},
		Handler:     handleAuthorAdd,
		InverseKind: Physical,
	})
}

// handleAuthorAdd appends a row to Settings.AuthorsTableHash (spec
// §6.2: "Settings.authors_table_hash points at an AuthorsTable ...
// commit's author_uuid must resolve in this table"). A uuid already
// present is replaced rather than duplicated, so re-running
// author:add updates a contributor's display name/email in place.
func handleAuthorAdd(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	uuid, _ := args.Single("uuid")
	if uuid == "" {
		return HandlerOutput{}, verr.Usagef("project: --uuid must not be empty")
	}
	name, _ := args.Single("name")
	email, _ := args.Single("email")

	authors, err := getAuthorsTable(tx, sc.Settings)
	if err != nil {
		return HandlerOutput{}, err
	}
	record := objects.AuthorRecord{UUID: uuid, Name: name, Email: email}
	replaced := false
	for i, a := range authors.Authors {
		if a.UUID == uuid {
			authors.Authors[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		authors.Authors = append(authors.Authors, record)
	}

	authorsHash, err := stageAuthorsTable(tx, authors)
	if err != nil {
		return HandlerOutput{}, err
	}
	settings := sc.Settings
	settings.AuthorsTableHash = objects.SomeHash(authorsHash)
	settingsHash, err := stageSettings(tx, settings)
	if err != nil {
		return HandlerOutput{}, err
	}

	after := sc.Pointers
	after.SettingsHash = objects.SomeHash(settingsHash)

	return HandlerOutput{
		Result: Result{Text: "added author " + uuid},
		After:  after,
	}, nil
}
