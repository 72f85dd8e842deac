package activitypub

import (
	"context"
	"errors"

	"github.com/angusmcleod/mastodon/models"
	"gorm.io/gorm"
)

// updateActor applies an Update of an actor's own profile. Display
// fields are overwritten unconditionally; the sender is authoritative
// over its own profile. A username change is applied only after the
// remote directory corroborates it, see tryRename.
func updateActor(ctx context.Context, e *Env, act *Activity) error {
	obj := act.Object
	if obj == nil {
		return dataErrorf("update %s has no materialized object", act.ObjectURI)
	}
	actor := act.Actor

	actor.DisplayName = stringFromAny(obj["name"])
	actor.Note = stringFromAny(obj["summary"])
	actor.Locked = boolFromAny(obj["manuallyApprovesFollowers"])
	actor.Avatar = stringFromAny(mapFromAny(obj["icon"])["url"])
	actor.Header = stringFromAny(mapFromAny(obj["image"])["url"])
	attrs := attachmentsToActorAttributes(anyToSlice(obj["attachment"]))

	if name := stringFromAny(obj["preferredUsername"]); name != "" && name != actor.Name {
		// rename failures of any kind skip the rename and keep the
		// rest of the update
		if err := e.tryRename(ctx, actor, name); err != nil {
			e.Log().Info("skipping rename", "uri", actor.URI, "name", name, "error", err)
		}
	}

	return e.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Attributes").Save(actor).Error; err != nil {
			return err
		}
		if err := tx.Where("actor_id = ?", actor.ID).Delete(&models.ActorAttribute{}).Error; err != nil {
			return err
		}
		for _, attr := range attrs {
			attr.ActorID = actor.ID
		}
		actor.Attributes = attrs
		if len(attrs) == 0 {
			return nil
		}
		return tx.Create(&attrs).Error
	})
}

// tryRename changes the actor's username to name if no other actor on the
// same domain holds it and the domain's own directory resolves the new
// handle back to this actor's URI. The collision check and the write are
// serialized per (domain, name) so two concurrent renames cannot both
// claim the same handle.
func (e *Env) tryRename(ctx context.Context, actor *models.Actor, name string) error {
	unlock := e.renames.lock(actor.Domain + "/" + name)
	defer unlock()

	actors := models.NewActors(e.DB)
	if _, err := actors.Find(name, actor.Domain); err == nil {
		return dataErrorf("username %q already taken on %s", name, actor.Domain)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	uri, err := e.finger().ResolveHandle(ctx, name, actor.Domain)
	if err != nil {
		return err
	}
	if uri != actor.URI {
		return dataErrorf("directory resolves %s@%s to %q, not %q", name, actor.Domain, uri, actor.URI)
	}
	return actors.Rename(actor, name)
}

// updateNote applies an Update of a Note. Engagement counters are copied
// at face value whenever the payload reports them; they are advisory and
// stored as untrusted. Content is treated as an edit, and EditedAt set,
// only when the payload carries an explicit updated timestamp; a counter
// resync alone never marks the post edited.
func updateNote(ctx context.Context, e *Env, act *Activity) error {
	obj := act.Object
	if obj == nil {
		return dataErrorf("update %s has no materialized object", act.ObjectURI)
	}
	status, err := findUpdateSubject(e, act, obj)
	if err != nil {
		return err
	}

	updates := map[string]any{}
	if likes := mapFromAny(obj["likes"]); likes != nil {
		if total, ok := likes["totalItems"]; ok {
			updates["untrusted_favourites_count"] = intFromAny(total)
		}
	}
	if shares := mapFromAny(obj["shares"]); shares != nil {
		if total, ok := shares["totalItems"]; ok {
			updates["untrusted_reblogs_count"] = intFromAny(total)
		}
	}

	if updated, err := timeFromAny(obj["updated"]); err == nil {
		updates["note"] = stringFromAny(obj["content"])
		updates["spoiler_text"] = stringFromAny(obj["summary"])
		updates["sensitive"] = boolFromAny(obj["sensitive"])
		updates["edited_at"] = updated
	}

	if len(updates) == 0 {
		return nil
	}
	return e.DB.Model(status).Updates(updates).Error
}

// updateQuestion applies an Update of a Question by replacing each cached
// tally with the matching option's reported reply count. Matching is
// positional; a resync never reorders or renames options, and an option
// the payload does not report on keeps its current tally. Tally changes
// are not edits, EditedAt stays untouched.
func updateQuestion(ctx context.Context, e *Env, act *Activity) error {
	obj := act.Object
	if obj == nil {
		return dataErrorf("update %s has no materialized object", act.ObjectURI)
	}
	status, err := findUpdateSubject(e, act, obj)
	if err != nil {
		return err
	}
	if status.Poll == nil {
		return dataErrorf("status %s has no poll", status.URI)
	}

	options := anyToSlice(obj["oneOf"])
	if anyOf := anyToSlice(obj["anyOf"]); len(anyOf) > 0 {
		options = anyOf
	}

	return e.DB.Transaction(func(tx *gorm.DB) error {
		for i := range status.Poll.Options {
			if i >= len(options) {
				break
			}
			replies := mapFromAny(mapFromAny(options[i])["replies"])
			total, ok := replies["totalItems"]
			if !ok {
				continue
			}
			count := intFromAny(total)
			if count == status.Poll.Options[i].Count {
				continue
			}
			if err := tx.Model(&status.Poll.Options[i]).Update("count", count).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// findUpdateSubject looks up the status named by the update payload and
// checks it belongs to the authenticated signer.
func findUpdateSubject(e *Env, act *Activity, obj map[string]any) (*models.Status, error) {
	uri := stringFromAny(obj["id"])
	if uri == "" {
		uri = act.ObjectURI
	}
	status, err := models.NewStatuses(e.DB).FindByURI(uri)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, dataErrorf("update for unknown status %q", uri)
	}
	if err != nil {
		return nil, err
	}
	if status.ActorID != act.Actor.ID {
		return nil, rejectionf("status %q belongs to another actor", uri)
	}
	return status, nil
}
