package memory

// Patch is a partial update to a Memory. Nil fields are left unchanged.
//
// GroupID and CustomLabel use an empty string to clear the field.
// Setting ImageDataURLs replaces the image list and drops the deprecated single image.
type Patch struct {
	Lat           *float64  `json:"lat,omitempty"`
	Lng           *float64  `json:"lng,omitempty"`
	Title         *string   `json:"title,omitempty"`
	Date          *string   `json:"date,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	ImageDataURLs *[]string `json:"imageDataUrls,omitempty"`
	GroupID       *string   `json:"groupId,omitempty"`
	Hidden        *bool     `json:"hidden,omitempty"`
	Starred       *bool     `json:"starred,omitempty"`
	Order         *float64  `json:"order,omitempty"`
	CustomLabel   *string   `json:"customLabel,omitempty"`
	Tags          *[]string `json:"tags,omitempty"`
	Links         *[]string `json:"links,omitempty"`
}

// Apply returns m with the patch's provided fields merged in. m is not modified.
func (p Patch) Apply(m Memory) Memory {
	out := m.Clone()
	if p.Lat != nil {
		out.Lat = *p.Lat
	}
	if p.Lng != nil {
		out.Lng = *p.Lng
	}
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Date != nil {
		out.Date = *p.Date
	}
	if p.Notes != nil {
		out.Notes = *p.Notes
	}
	if p.ImageDataURLs != nil {
		out.ImageDataURLs = cloneStrings(*p.ImageDataURLs)
		out.ImageDataURL = nil
	}
	if p.GroupID != nil {
		out.GroupID = emptyToNil(*p.GroupID)
	}
	if p.Hidden != nil {
		out.Hidden = *p.Hidden
	}
	if p.Starred != nil {
		out.Starred = *p.Starred
	}
	if p.Order != nil {
		out.Order = FloatPtr(*p.Order)
	}
	if p.CustomLabel != nil {
		out.CustomLabel = emptyToNil(*p.CustomLabel)
	}
	if p.Tags != nil {
		out.Tags = NormalizeTags(*p.Tags)
	}
	if p.Links != nil {
		out.Links = cloneStrings(*p.Links)
	}
	return out
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// GroupPatch is a partial update to a Group.
type GroupPatch struct {
	Name      *string `json:"name,omitempty"`
	Collapsed *bool   `json:"collapsed,omitempty"`
	Hidden    *bool   `json:"hidden,omitempty"`
}

// Apply returns g with the provided fields merged in.
func (p GroupPatch) Apply(g Group) Group {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.Collapsed != nil {
		g.Collapsed = *p.Collapsed
	}
	if p.Hidden != nil {
		g.Hidden = *p.Hidden
	}
	return g
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
