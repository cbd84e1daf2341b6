package services

import (
	"errors"
	"testing"

	"github.com/shelby-app/shelby/internal/models"
)

func TestAddMemberTwiceConflicts(t *testing.T) {
	conn := setupTestDB(t)
	persons := NewPersonService(conn)
	groups := NewGroupService(conn)

	alice, err := persons.Create(PersonInput{Name: "Alice"})
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	board, err := groups.Create("Board")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	if _, err := groups.AddMember(board.ID, alice.ID, ""); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := groups.AddMember(board.ID, alice.ID, ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("second add: expected ErrConflict, got %v", err)
	}

	var count int64
	conn.Model(&models.Membership{}).
		Where("person_id = ? AND group_id = ?", alice.ID, board.ID).
		Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one membership row, got %d", count)
	}

	members, _, _, err := groups.Members(board.ID, Pagination{})
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 1 || members[0].Person == nil || members[0].Person.Name != "Alice" {
		t.Fatalf("expected one member Alice, got %+v", members)
	}
}

func TestAddMemberUnknownEntities(t *testing.T) {
	conn := setupTestDB(t)
	persons := NewPersonService(conn)
	groups := NewGroupService(conn)

	alice, err := persons.Create(PersonInput{Name: "Alice"})
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	board, err := groups.Create("Board")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	if _, err := groups.AddMember(board.ID, 999, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown person: expected ErrNotFound, got %v", err)
	}
	if _, err := groups.AddMember(999, alice.ID, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown group: expected ErrNotFound, got %v", err)
	}
}

func TestRemoveMemberRemovesExactlyOneRow(t *testing.T) {
	conn := setupTestDB(t)
	persons := NewPersonService(conn)
	groups := NewGroupService(conn)

	alice, _ := persons.Create(PersonInput{Name: "Alice"})
	bob, _ := persons.Create(PersonInput{Name: "Bob"})
	board, _ := groups.Create("Board")
	choir, _ := groups.Create("Choir")

	target, err := groups.AddMember(board.ID, alice.ID, "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := groups.AddMember(board.ID, bob.ID, ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := groups.AddMember(choir.ID, alice.ID, ""); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := groups.RemoveMember(target.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := groups.RemoveMember(target.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double remove: expected ErrNotFound, got %v", err)
	}

	var memberships int64
	conn.Model(&models.Membership{}).Count(&memberships)
	if memberships != 2 {
		t.Fatalf("expected 2 surviving memberships, got %d", memberships)
	}
	if _, err := persons.Get(alice.ID); err != nil {
		t.Errorf("person vanished with membership: %v", err)
	}
	if _, err := groups.Get(board.ID); err != nil {
		t.Errorf("group vanished with membership: %v", err)
	}
}

func TestDeleteGroupWithMembersConflicts(t *testing.T) {
	conn := setupTestDB(t)
	persons := NewPersonService(conn)
	groups := NewGroupService(conn)

	alice, _ := persons.Create(PersonInput{Name: "Alice"})
	board, _ := groups.Create("Board")
	membership, err := groups.AddMember(board.ID, alice.ID, "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := groups.Delete(board.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := groups.RemoveMember(membership.ID); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	if err := groups.Delete(board.ID); err != nil {
		t.Fatalf("delete after removal: %v", err)
	}
	if err := groups.Delete(board.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMembershipsOfPerson(t *testing.T) {
	conn := setupTestDB(t)
	persons := NewPersonService(conn)
	groups := NewGroupService(conn)

	alice, _ := persons.Create(PersonInput{Name: "Alice"})
	board, _ := groups.Create("Board")
	choir, _ := groups.Create("Choir")
	if _, err := groups.AddMember(board.ID, alice.ID, "chair"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := groups.AddMember(choir.ID, alice.ID, ""); err != nil {
		t.Fatalf("add: %v", err)
	}

	rows, hasPrev, hasNext, err := groups.MembershipsOf(alice.ID, Pagination{Order: SortAscending, SortKey: "id"})
	if err != nil {
		t.Fatalf("memberships: %v", err)
	}
	if len(rows) != 2 || hasPrev || hasNext {
		t.Fatalf("unexpected page: %d rows, prev=%v next=%v", len(rows), hasPrev, hasNext)
	}
	if rows[0].Group == nil || rows[0].Group.Description != "Board" {
		t.Fatalf("expected Board first, got %+v", rows[0].Group)
	}
	if rows[0].Comment != "chair" {
		t.Fatalf("comment lost: %+v", rows[0])
	}
}
