package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shrek82/torm/column"
	"github.com/shrek82/torm/model"
)

type Person struct {
	ID    *int32
	Name  string
	Age   *int32
	Score *float64

	found bool
}

var errBlankName = errors.New("blank name")

func (p *Person) BeforePut() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return errBlankName
	}
	return nil
}

func (p *Person) AfterFind() error {
	p.found = true
	return nil
}

var (
	personID    = column.Serial("id", column.Primary())
	personName  = column.Text("name", column.NotNull())
	personAge   = column.Integer("age")
	personScore = column.Double("score")
)

func personSchema() *model.Schema[Person] {
	return model.MustDescribe("person",
		model.NullableField(personID, func(p *Person) **int32 { return &p.ID }),
		model.Field(personName, func(p *Person) *string { return &p.Name }),
		model.NullableField(personAge, func(p *Person) **int32 { return &p.Age }),
		model.NullableField(personScore, func(p *Person) **float64 { return &p.Score }),
	)
}

func personRegistry(t *testing.T) *model.Registry {
	t.Helper()
	r := model.NewRegistry()
	require.NoError(t, model.Register(r, personSchema()))
	return r
}

func ptr[T any](v T) *T { return &v }

type Membership struct {
	OrgID  int32
	UserID int32
	Role   *string
}

var (
	memberOrg  = column.Integer("org_id", column.Primary(), column.NotNull())
	memberUser = column.Integer("user_id", column.Primary(), column.NotNull())
	memberRole = column.Text("role")
)

func membershipSchema() *model.Schema[Membership] {
	return model.MustDescribe("",
		model.Field(memberOrg, func(m *Membership) *int32 { return &m.OrgID }),
		model.Field(memberUser, func(m *Membership) *int32 { return &m.UserID }),
		model.NullableField(memberRole, func(m *Membership) **string { return &m.Role }),
	)
}
