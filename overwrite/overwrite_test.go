package overwrite_test

import (
	"testing"

	"github.com/edrusb/darchive/catalog"
	"github.com/edrusb/darchive/datetime"
	"github.com/edrusb/darchive/overwrite"
	"github.com/stretchr/testify/require"
)

func inodeAt(name string, mtime int64) catalog.Inode {
	return catalog.Inode{
		Named:      catalog.Named{Name: name},
		Mtime:      datetime.DateTime{Seconds: mtime},
		SavedState: catalog.Saved,
	}
}

func TestConstantAction(t *testing.T) {
	act := overwrite.Constant{Data: overwrite.DataOverwrite, EA: overwrite.EAOverwrite}
	o := overwrite.GetAction(act, nil, nil)
	require.Equal(t, overwrite.DataOverwrite, o.Data)
	require.Equal(t, overwrite.EAOverwrite, o.EA)
}

func TestTestingDispatchesOnCriterion(t *testing.T) {
	act := overwrite.Testing{
		Criterion: overwrite.IncomingIsNewer,
		GoTrue:    overwrite.Constant{Data: overwrite.DataOverwrite, EA: overwrite.EAOverwrite},
		GoFalse:   overwrite.Constant{Data: overwrite.DataPreserve, EA: overwrite.EAPreserve},
	}

	older := &catalog.File{Inode: inodeAt("f", 100)}
	newer := &catalog.File{Inode: inodeAt("f", 200)}

	o := overwrite.GetAction(act, older, newer)
	require.Equal(t, overwrite.DataOverwrite, o.Data)

	o2 := overwrite.GetAction(act, newer, older)
	require.Equal(t, overwrite.DataPreserve, o2.Data)
}

func TestChainStopsOnceBothFieldsDecided(t *testing.T) {
	var chain overwrite.Chain
	chain.Add(overwrite.Testing{
		Criterion: overwrite.SameType,
		GoTrue:    overwrite.Constant{Data: overwrite.DataOverwrite},
		GoFalse:   overwrite.Constant{}, // leaves both undefined
	})
	chain.Add(overwrite.Constant{Data: overwrite.DataRemove, EA: overwrite.EAClear})

	same := &catalog.File{Inode: inodeAt("f", 1)}
	o := overwrite.GetAction(&chain, same, same)
	require.Equal(t, overwrite.DataOverwrite, o.Data)
	require.Equal(t, overwrite.EAClear, o.EA) // data decided by link 1, EA falls through to link 2
}

func TestChainGobble(t *testing.T) {
	var a, b overwrite.Chain
	a.Add(overwrite.Constant{Data: overwrite.DataPreserve})
	b.Add(overwrite.Constant{EA: overwrite.EAPreserve})

	a.Gobble(&b)
	o := overwrite.GetAction(&a, nil, nil)
	require.Equal(t, overwrite.DataPreserve, o.Data)
	require.Equal(t, overwrite.EAPreserve, o.EA)

	o2 := overwrite.GetAction(&b, nil, nil)
	require.Equal(t, overwrite.DataUndefined, o2.Data)
}

type constResolver struct {
	data overwrite.DataAction
	ea   overwrite.EAAction
}

func (r constResolver) ResolveData(_, _ catalog.Entry) (overwrite.DataAction, error) { return r.data, nil }
func (r constResolver) ResolveEA(_, _ catalog.Entry) (overwrite.EAAction, error)      { return r.ea, nil }

func TestResolveDispatchesAsk(t *testing.T) {
	act := overwrite.Constant{Data: overwrite.DataAsk, EA: overwrite.EAAsk}
	resolver := constResolver{data: overwrite.DataOverwrite, ea: overwrite.EAOverwrite}

	o, err := overwrite.Resolve(act, nil, nil, resolver)
	require.NoError(t, err)
	require.Equal(t, overwrite.DataOverwrite, o.Data)
	require.Equal(t, overwrite.EAOverwrite, o.EA)
}

func TestResolveErrorsOnUndefined(t *testing.T) {
	act := overwrite.Constant{}
	_, err := overwrite.Resolve(act, nil, nil, constResolver{})
	require.Error(t, err)
}

func TestIncomingIsDeletedCriterion(t *testing.T) {
	del := &catalog.Deleted{Named: catalog.Named{Name: "gone"}}
	require.True(t, overwrite.IncomingIsDeleted.Evaluate(nil, del))
	require.False(t, overwrite.IncomingIsDeleted.Evaluate(del, nil))
}
