package core

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddresses(t *testing.T) {
	tests := []struct {
		name    string
		list    string
		want    []mail.Address
		wantErr bool
	}{
		{name: "empty", list: "  "},
		{name: "single", list: "office@school.test", want: []mail.Address{{Address: "office@school.test"}}},
		{
			name: "named and bare",
			list: "Front Office <office@school.test>, head@school.test",
			want: []mail.Address{{Name: "Front Office", Address: "office@school.test"}, {Address: "head@school.test"}},
		},
		{name: "invalid", list: "not an address", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddresses(tt.list)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJoinAddresses(t *testing.T) {
	addrs := []mail.Address{{Name: "Front Office", Address: "office@school.test"}, {Address: "head@school.test"}}
	assert.Equal(t, `"Front Office" <office@school.test>, <head@school.test>`, JoinAddresses(addrs))
	assert.Empty(t, JoinAddresses(nil))
}

func TestEmailMessage(t *testing.T) {
	msg := EmailMessage{}
	assert.False(t, msg.HasRecipients())
	assert.False(t, msg.HasContent())

	msg.To = []mail.Address{{Address: "office@school.test"}}
	msg.HTMLContent = "<p>hi</p>"
	assert.True(t, msg.HasRecipients())
	assert.True(t, msg.HasContent())
}
