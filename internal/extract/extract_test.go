package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agencyhq/warroom/modules/structure/domain/action"
)

func TestDecodeActionList(t *testing.T) {
	raw := []byte(`{"actions":[
		{"type":"WIPE"},
		{"type":"CREATE_MAIN_STRUCTURE"},
		{"type":"INITIALIZE","agencies":[
			{"name":"Reflect Agencies","emoji":"🦁","is_main":true},
			{"name":"Team A","emoji":"💎"}
		]},
		{"type":"MAP","downline":"Team A","upline":"Reflect Agencies"},
		{"type":"DEPLOY_ONBOARDING"}
	]}`)

	list, err := DecodeActionList(raw)
	require.NoError(t, err)
	require.Len(t, list, 5)

	require.Equal(t, action.Wipe{}, list[0])
	require.Equal(t, action.BuildMainStructure{}, list[1])
	require.Equal(t, action.InitializeAgencies{Agencies: []action.AgencySpec{
		{Name: "Reflect Agencies", Emoji: "🦁", IsMain: true},
		{Name: "Team A", Emoji: "💎"},
	}}, list[2])
	require.Equal(t, action.MapEdge{DownlineName: "Team A", UplineName: "Reflect Agencies"}, list[3])
	require.Equal(t, action.DeployOnboarding{}, list[4])
}

func TestDecodeActionList_UnknownType(t *testing.T) {
	_, err := DecodeActionList([]byte(`{"actions":[{"type":"EXPLODE"}]}`))
	require.ErrorIs(t, err, ErrUnparsable)
}

func TestDecodeActionList_Empty(t *testing.T) {
	_, err := DecodeActionList([]byte(`{"actions":[]}`))
	require.ErrorIs(t, err, ErrUnparsable)

	_, err = DecodeActionList([]byte(`{}`))
	require.ErrorIs(t, err, ErrUnparsable)
}

func TestDecodeActionList_Garbage(t *testing.T) {
	_, err := DecodeActionList([]byte(`the model rambled instead of answering`))
	require.ErrorIs(t, err, ErrUnparsable)
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"{\"actions\":[]}", "{\"actions\":[]}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  ```json\n{\"a\":1}\n```  ", "{\"a\":1}"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, StripFences(tc.in))
	}
}
