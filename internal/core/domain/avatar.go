package domain

// Avatar is the rendered body of a user in the cosmos. It is owned by
// exactly one user; only the owning client may emit updates for it.
type Avatar struct {
	Position [3]float64 `json:"position"`
	Color    string     `json:"color"`
	Shape    string     `json:"shape"`
	Size     float64    `json:"size"`
}

// AvatarPatch is a partial avatar update. Nil fields are left untouched
// when the patch is merged into the existing record.
type AvatarPatch struct {
	Position *[3]float64 `json:"position,omitempty"`
	Color    *string     `json:"color,omitempty"`
	Shape    *string     `json:"shape,omitempty"`
	Size     *float64    `json:"size,omitempty"`
}

// Merge applies the non-nil fields of the patch onto the avatar.
func (a Avatar) Merge(patch AvatarPatch) Avatar {
	if patch.Position != nil {
		a.Position = *patch.Position
	}
	if patch.Color != nil {
		a.Color = *patch.Color
	}
	if patch.Shape != nil {
		a.Shape = *patch.Shape
	}
	if patch.Size != nil {
		a.Size = *patch.Size
	}
	return a
}
