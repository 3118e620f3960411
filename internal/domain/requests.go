package domain

// HTTP request bodies for the group and profile API.

type RenameGroupRequest struct {
	NewName string `json:"new_name" binding:"required"`
}

type UpdateDescriptionRequest struct {
	Description string `json:"description"`
}

type UpdateGroupAvatarRequest struct {
	AvatarURL string `json:"avatar_url"`
}

type UpdateMembersRequest struct {
	Members []string `json:"members" binding:"required"`
}

type AddAdminRequest struct {
	TargetUser string `json:"target_user" binding:"required"`
}

// UpdateProfileRequest changes only the fields that are present.
type UpdateProfileRequest struct {
	Bio       *string `json:"bio"`
	AvatarURL *string `json:"avatar_url"`
}
