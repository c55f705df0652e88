package conversations

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Profile describes the person being interviewed.
type Profile struct {
	Name       string            `json:"name,omitempty"`
	BirthYear  int               `json:"birth_year,omitempty"`
	Hometown   string            `json:"hometown,omitempty"`
	Occupation string            `json:"occupation,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

func (p Profile) IsZero() bool {
	return p.Name == "" && p.BirthYear == 0 && p.Hometown == "" && p.Occupation == "" && len(p.Extra) == 0
}

// ProfileSource is read once per connection to personalize the session.
type ProfileSource interface {
	ProfileSnapshot() Profile
}

// StaticProfile is a ProfileSource that never changes.
type StaticProfile Profile

func (p StaticProfile) ProfileSnapshot() Profile {
	profile := Profile(p)
	profile.Extra = maps.Clone(p.Extra)
	return profile
}

// Instructions appends what is known about the interviewee to base.
func Instructions(base string, p Profile) string {
	if p.IsZero() {
		return base
	}

	var facts []string
	if p.Name != "" {
		facts = append(facts, "姓名："+p.Name)
	}
	if p.BirthYear > 0 {
		facts = append(facts, fmt.Sprintf("出生年份：%d", p.BirthYear))
	}
	if p.Hometown != "" {
		facts = append(facts, "家乡："+p.Hometown)
	}
	if p.Occupation != "" {
		facts = append(facts, "职业："+p.Occupation)
	}
	for _, key := range slices.Sorted(maps.Keys(p.Extra)) {
		if value := p.Extra[key]; value != "" {
			facts = append(facts, key+"："+value)
		}
	}

	var b strings.Builder
	b.WriteString(base)
	if base != "" {
		b.WriteString("\n\n")
	}
	b.WriteString("受访者信息：\n")
	for _, fact := range facts {
		b.WriteString("- ")
		b.WriteString(fact)
		b.WriteString("\n")
	}
	if p.Name != "" {
		b.WriteString("请用“" + p.Name + "”称呼对方，每次只问一个问题。")
	} else {
		b.WriteString("每次只问一个问题。")
	}
	return b.String()
}
