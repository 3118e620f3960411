package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/weiawesome/wes-chat/internal/audit"
	"github.com/weiawesome/wes-chat/internal/chat"
	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/repository"
	"github.com/weiawesome/wes-chat/pkg/log"
	"github.com/weiawesome/wes-chat/pkg/pubsub"
)

type groupService struct {
	*core
}

func NewGroupService(deps *Dependencies) GroupService {
	return &groupService{core: newCore(deps)}
}

// lockGroups locks every named group in a fixed order.
func (s *groupService) lockGroups(names ...string) func() {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	unlocks := make([]func(), 0, len(sorted))
	for i, name := range sorted {
		if i > 0 && name == sorted[i-1] {
			continue
		}
		unlocks = append(unlocks, s.locks.Lock(groupKey(name)))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

func (s *groupService) getGroup(ctx context.Context, name string) (*domain.Group, error) {
	g, err := s.groups.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			return nil, ruleError(err, "Group not found")
		}
		return nil, fmt.Errorf("failed to load group %s: %w", name, err)
	}
	return g, nil
}

func (s *groupService) memberGroup(ctx context.Context, actor, name string) (*domain.Group, error) {
	g, err := s.getGroup(ctx, name)
	if err != nil {
		return nil, err
	}
	if !g.IsMember(actor) {
		return nil, ruleError(chat.ErrNotMember, "You are not a member of this group")
	}
	return g, nil
}

func (s *groupService) groupChanged(ctx context.Context, g *domain.Group) {
	s.broadcastGroups(ctx)
	pubsub.Emit(ctx, s.events, pubsub.EventGroupChanged, g.Name, g, s.now())
}

func (s *groupService) RenameGroup(ctx context.Context, actor, name, newName string) (*domain.Group, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, ruleError(ErrInvalidRequest, "New group name is required")
	}

	unlock := s.lockGroups(name, newName)
	defer unlock()

	g, err := s.memberGroup(ctx, actor, name)
	if err != nil {
		return nil, err
	}
	if newName == g.Name {
		return g, nil
	}

	if err := s.groups.Rename(ctx, g.Name, newName); err != nil {
		if errors.Is(err, repository.ErrGroupExists) {
			return nil, ruleError(err, "Group name already exists")
		}
		return nil, fmt.Errorf("failed to rename group: %w", err)
	}
	audit.LogTarget(ctx, audit.ActionRenameGroup, actor, newName, "group renamed from "+g.Name)

	renamed := domain.GroupRenamed{OldName: g.Name, NewName: newName}
	g.Name = newName
	s.groupChanged(ctx, g)
	delivered(ctx, domain.EventGroupRenamed, s.router.ToAll(domain.EventGroupRenamed, renamed))
	return g, nil
}

func (s *groupService) UpdateDescription(ctx context.Context, actor, name, description string) (*domain.Group, error) {
	unlock := s.lockGroups(name)
	defer unlock()

	g, err := s.memberGroup(ctx, actor, name)
	if err != nil {
		return nil, err
	}
	if err := s.groups.UpdateDescription(ctx, g.Name, description); err != nil {
		return nil, fmt.Errorf("failed to update description: %w", err)
	}
	g.Description = description
	s.groupChanged(ctx, g)
	return g, nil
}

func (s *groupService) UpdateAvatar(ctx context.Context, actor, name, avatarURL string) (*domain.Group, error) {
	unlock := s.lockGroups(name)
	defer unlock()

	g, err := s.memberGroup(ctx, actor, name)
	if err != nil {
		return nil, err
	}
	if err := s.groups.UpdateAvatar(ctx, g.Name, avatarURL); err != nil {
		return nil, fmt.Errorf("failed to update avatar: %w", err)
	}
	g.AvatarURL = avatarURL
	s.groupChanged(ctx, g)
	return g, nil
}

// UpdateMembers replaces the member list. The creator always stays and
// admins who are no longer members lose the role.
func (s *groupService) UpdateMembers(ctx context.Context, actor, name string, members []string) (*domain.Group, error) {
	unlock := s.lockGroups(name)
	defer unlock()

	g, err := s.getGroup(ctx, name)
	if err != nil {
		return nil, err
	}
	if !g.IsAdmin(actor) {
		return nil, ruleError(ErrForbidden, "Only admins can change the members")
	}

	next := normalizeNames(append([]string{g.Creator}, members...))
	admins := make([]string, 0, len(g.Admins))
	for _, a := range normalizeNames(g.Admins) {
		if contains(next, a) {
			admins = append(admins, a)
		}
	}

	var added []string
	for _, m := range next {
		if !g.IsMember(m) {
			added = append(added, m)
		}
	}

	if err := s.groups.UpdateMembers(ctx, g.Name, next, admins); err != nil {
		return nil, fmt.Errorf("failed to update members: %w", err)
	}
	g.Members, g.Admins = next, admins
	audit.LogTarget(ctx, audit.ActionUpdateMembers, actor, g.Name, fmt.Sprintf("members updated, %d added", len(added)))

	s.groupChanged(ctx, g)
	for _, m := range added {
		if err := s.postSystemMessage(ctx, g, g.Members, m+" was added to the group"); err != nil {
			l := log.Ctx(ctx)
			l.Error().Err(err).Str(log.FieldGroup, g.Name).Msg("failed to announce new member")
		}
	}
	return g, nil
}

func (s *groupService) LeaveGroup(ctx context.Context, actor, name string) error {
	unlock := s.lockGroups(name)
	defer unlock()

	g, err := s.memberGroup(ctx, actor, name)
	if err != nil {
		return err
	}
	if g.Creator == actor {
		return ruleError(ErrForbidden, "The group creator cannot leave; delete the group instead")
	}

	members := remove(g.Members, actor)
	admins := remove(g.Admins, actor)
	if err := s.groups.UpdateMembers(ctx, g.Name, members, admins); err != nil {
		return fmt.Errorf("failed to leave group: %w", err)
	}
	g.Members, g.Admins = members, admins
	audit.LogTarget(ctx, audit.ActionLeaveGroup, actor, g.Name, "user left group")

	s.groupChanged(ctx, g)
	if err := s.postSystemMessage(ctx, g, g.Members, actor+" left the group"); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldGroup, g.Name).Msg("failed to announce leave")
	}
	left := domain.UserLeftGroup{GroupName: g.Name, Username: actor}
	delivered(ctx, domain.EventUserLeftGroup, s.router.ToAll(domain.EventUserLeftGroup, left))
	return nil
}

func (s *groupService) DeleteGroup(ctx context.Context, actor, name string) error {
	unlock := s.lockGroups(name)
	defer unlock()

	g, err := s.getGroup(ctx, name)
	if err != nil {
		return err
	}
	if g.Creator != actor {
		return ruleError(ErrForbidden, "Only the group creator can delete the group")
	}

	if err := s.groups.Delete(ctx, g.Name); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	audit.LogTarget(ctx, audit.ActionDeleteGroup, actor, g.Name, "group deleted")

	s.groupChanged(ctx, g)
	deleted := domain.GroupDeleted{GroupName: g.Name}
	delivered(ctx, domain.EventGroupDeleted, s.router.ToAll(domain.EventGroupDeleted, deleted))
	return nil
}

func (s *groupService) AddAdmin(ctx context.Context, actor, name, target string) (string, error) {
	unlock := s.lockGroups(name)
	defer unlock()

	g, err := s.getGroup(ctx, name)
	if err != nil {
		return "", err
	}
	if !g.IsAdmin(actor) {
		return "", ruleError(ErrForbidden, "Only admins can add other admins")
	}
	if !g.IsMember(target) {
		return "", ruleError(chat.ErrNotMember, "User must be a member of the group")
	}
	if contains(g.Admins, target) {
		return "", ruleError(ErrAlreadyAdmin, "User is already an admin")
	}

	admins := append(append([]string(nil), g.Admins...), target)
	if err := s.groups.UpdateAdmins(ctx, g.Name, admins); err != nil {
		return "", fmt.Errorf("failed to add admin: %w", err)
	}
	g.Admins = admins
	audit.LogTarget(ctx, audit.ActionAddAdmin, actor, target, "admin added to "+g.Name)

	if err := s.postSystemMessage(ctx, g, g.Members, fmt.Sprintf("%s was promoted to admin by %s", target, actor)); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldGroup, g.Name).Msg("failed to announce new admin")
	}
	s.groupChanged(ctx, g)
	return target + " is now an admin", nil
}

func (s *groupService) RemoveAdmin(ctx context.Context, actor, name, target string) (string, error) {
	unlock := s.lockGroups(name)
	defer unlock()

	g, err := s.getGroup(ctx, name)
	if err != nil {
		return "", err
	}
	if g.Creator != actor {
		return "", ruleError(ErrForbidden, "Only the group creator can remove admins")
	}
	if !contains(g.Admins, target) {
		return "", ruleError(ErrNotAdmin, "User is not an admin")
	}
	if target == g.Creator {
		return "", ruleError(ErrForbidden, "Cannot remove the group creator from admins")
	}

	admins := remove(g.Admins, target)
	if err := s.groups.UpdateAdmins(ctx, g.Name, admins); err != nil {
		return "", fmt.Errorf("failed to remove admin: %w", err)
	}
	g.Admins = admins
	audit.LogTarget(ctx, audit.ActionRemoveAdmin, actor, target, "admin removed from "+g.Name)

	if err := s.postSystemMessage(ctx, g, g.Members, fmt.Sprintf("%s was removed from admin by %s", target, actor)); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldGroup, g.Name).Msg("failed to announce admin removal")
	}
	s.groupChanged(ctx, g)
	return target + " is no longer an admin", nil
}

func (s *groupService) ListPolls(ctx context.Context, actor, name string) ([]*domain.Poll, error) {
	g, err := s.memberGroup(ctx, actor, name)
	if err != nil {
		return nil, err
	}
	polls, err := s.polls.ListByGroup(ctx, g.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	return polls, nil
}

func (s *groupService) UpdateProfile(ctx context.Context, actor string, bio, avatarURL *string) (*domain.User, error) {
	u, err := s.users.UpdateProfile(ctx, actor, bio, avatarURL)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ruleError(err, "User not found")
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	delivered(ctx, domain.EventUserAvatarUpdated, s.router.ToAll(domain.EventUserAvatarUpdated, u))
	s.broadcastRoster(ctx, true)
	return u, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func remove(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
