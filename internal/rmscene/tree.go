package rmscene

import (
	"io"

	"github.com/pkg/errors"
)

// rootGroupID is the fixed id of the scene's top-level group (spec.md
// §4.7).
var rootGroupID = CrdtID{Author: 0, Counter: 1}

// SceneTree is the rebuilt, navigable form of a scene file: a mapping
// from CrdtID to Group rooted at rootGroupID, plus the block-level
// metadata (authors, page info, scene info) and the root text, if any.
type SceneTree struct {
	Root    *Group
	nodes   map[CrdtID]*Group
	Authors map[uint16]string

	Migration *MigrationInfoBlock
	PageInfo  *PageInfoBlock
	Info      *SceneInfoBlock

	RootTextID CrdtID
	RootText   *Text

	// Unreadable collects one entry per block the reader could not
	// parse (unknown type or malformed payload); the rest of the stream
	// is still readable.
	Unreadable []*UnreadableBlock
}

// NewSceneTree creates an empty tree containing only the root group.
func NewSceneTree() *SceneTree {
	root := NewGroup(rootGroupID)
	return &SceneTree{Root: root, nodes: map[CrdtID]*Group{rootGroupID: root}}
}

// Lookup returns the group registered under id, if any.
func (t *SceneTree) Lookup(id CrdtID) (*Group, bool) {
	g, ok := t.nodes[id]
	return g, ok
}

// addNode ensures a group exists for id, recording parent as its parent
// edge; idempotent if the group already exists.
func (t *SceneTree) addNode(id, parent CrdtID) *Group {
	g, ok := t.nodes[id]
	if !ok {
		g = NewGroup(id)
		t.nodes[id] = g
	}
	g.ParentID = parent
	return g
}

// attachItem appends entry to parentID's child sequence, failing with
// ErrParentMissing if the parent group hasn't been registered yet.
func (t *SceneTree) attachItem(parentID CrdtID, entry Entry[SceneItem]) error {
	parent, ok := t.nodes[parentID]
	if !ok {
		return errors.Wrapf(ErrParentMissing, "parent %s", parentID)
	}
	return parent.Children.Insert(entry)
}

// WalkFunc is called once per (id, item) pair visited by Walk, in
// child-sequence order.
type WalkFunc func(id CrdtID, item SceneItem) error

// Walk traverses from (defaulting to the tree root) in canonical child
// order, recursing into group items so the whole scene is covered;
// groups are visited whatever their Visible value.
func (t *SceneTree) Walk(from *Group, fn WalkFunc) error {
	if from == nil {
		from = t.Root
	}
	items, err := from.Children.SortedItems()
	if err != nil {
		return err
	}
	for _, it := range items {
		if it.Tombstone {
			continue
		}
		if err := fn(it.ID, it.Value); err != nil {
			return err
		}
		if it.Value.Kind == SceneItemGroup && it.Value.Group != nil {
			if err := t.Walk(it.Value.Group, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadSceneTree reads a complete .lines file into a SceneTree.
//
// Header and envelope errors abort the read outright. A malformed or
// unknown block's payload is instead captured as an UnreadableBlock and
// the reader continues with the next envelope — except ParentMissing,
// which aborts the whole read since an orphaned child would corrupt the
// tree's topology (spec.md §7).
func ReadSceneTree(data []byte) (*SceneTree, error) {
	r := NewReader(data)
	if err := r.ReadHeader(); err != nil {
		return nil, err
	}

	tree := NewSceneTree()
	for {
		info, err := r.ReadBlockHeader()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}

		blockErr := tree.dispatchBlock(r, info)
		if blockErr == nil {
			blockErr = r.EndBlock()
		}
		if blockErr == nil {
			continue
		}
		if errors.Is(blockErr, ErrParentMissing) {
			return nil, blockErr
		}

		payload, recErr := r.RecoverBlock()
		if recErr != nil {
			return nil, errors.Wrap(recErr, "recovering unreadable block")
		}
		tree.Unreadable = append(tree.Unreadable, &UnreadableBlock{
			Offset:         info.Offset,
			BlockType:      info.BlockType,
			MinVersion:     info.MinVersion,
			CurrentVersion: info.CurrentVersion,
			Err:            blockErr,
			Bytes:          payload,
		})
	}
	return tree, nil
}

func (t *SceneTree) dispatchBlock(r *Reader, info *BlockInfo) error {
	switch info.BlockType {
	case BlockAuthorIDs:
		authors, err := readAuthorIDsBlock(r)
		if err != nil {
			return err
		}
		t.Authors = authors

	case BlockMigrationInfo:
		b, err := readMigrationInfoBlock(r)
		if err != nil {
			return err
		}
		t.Migration = &b

	case BlockPageInfo:
		b, err := readPageInfoBlock(r)
		if err != nil {
			return err
		}
		t.PageInfo = &b

	case BlockSceneInfo:
		b, err := readSceneInfoBlock(r)
		if err != nil {
			return err
		}
		t.Info = &b

	case BlockSceneTree:
		b, err := readSceneTreeBlock(r)
		if err != nil {
			return err
		}
		t.addNode(b.NodeID, b.ParentID)

	case BlockTreeNode:
		b, err := readTreeNodeBlock(r)
		if err != nil {
			return err
		}
		g, ok := t.nodes[b.NodeID]
		if !ok {
			g = t.addNode(b.NodeID, CrdtID{})
		}
		g.Label = b.Label
		g.Visible = b.Visible
		g.AnchorID = b.AnchorID
		g.AnchorType = b.AnchorType
		g.AnchorThreshold = b.AnchorThreshold
		g.AnchorOriginX = b.AnchorOriginX

	case BlockSceneLineItem, BlockSceneGlyphItem, BlockSceneGroupItem, BlockSceneTextItem, BlockSceneTombstone:
		prefix, raw, _, err := readSceneItemBlock(r, info.BlockType, info.CurrentVersion)
		if err != nil {
			return err
		}
		item := SceneItem{Kind: raw.kind}
		switch raw.kind {
		case SceneItemLine:
			item.Line = raw.line
		case SceneItemGlyphRange:
			item.GlyphRange = raw.glyph
		case SceneItemGroup:
			item.Group = t.addNode(raw.groupRef, prefix.ParentID)
		}
		entry := Entry[SceneItem]{
			ItemID:        prefix.ItemID,
			LeftID:        prefix.LeftID,
			RightID:       prefix.RightID,
			DeletedLength: prefix.DeletedLength,
			Value:         item,
		}
		if err := t.attachItem(prefix.ParentID, entry); err != nil {
			return err
		}

	case BlockRootText:
		blockID, text, err := readRootTextBlock(r)
		if err != nil {
			return err
		}
		t.RootTextID = blockID
		t.RootText = text

	default:
		return errors.Errorf("unknown block type 0x%02X", info.BlockType)
	}
	return nil
}

// blockTypeForItem picks the block type and point-encoding version used
// to write v, matching spec.md §4.6's block-type-per-kind grouping.
// Tombstoned entries (no kind information retained) are written back as
// BlockSceneTombstone.
func blockTypeForItem(v SceneItem) (blockType uint8, version uint8) {
	switch v.Kind {
	case SceneItemLine:
		return BlockSceneLineItem, 2
	case SceneItemGroup:
		return BlockSceneGroupItem, 0
	case SceneItemGlyphRange:
		return BlockSceneGlyphItem, 0
	default:
		return BlockSceneTombstone, 0
	}
}

// WriteSceneTree serialises tree following the writer convention in
// spec.md §6: AuthorIds, MigrationInfo, PageInfo, SceneInfo, then each
// group in pre-order (SceneTreeBlock, TreeNodeBlock, item blocks in
// ascending-ItemID order), then RootText last.
func WriteSceneTree(tree *SceneTree) ([]byte, error) {
	w := NewWriter()
	w.WriteHeader()

	if tree.Authors != nil {
		if err := w.BeginBlock(BlockAuthorIDs, 0, 0); err != nil {
			return nil, err
		}
		if err := writeAuthorIDsBlock(w, tree.Authors); err != nil {
			return nil, err
		}
		if err := w.EndBlock(); err != nil {
			return nil, err
		}
	}
	if tree.Migration != nil {
		if err := w.BeginBlock(BlockMigrationInfo, 0, 0); err != nil {
			return nil, err
		}
		writeMigrationInfoBlock(w, *tree.Migration)
		if err := w.EndBlock(); err != nil {
			return nil, err
		}
	}
	if tree.PageInfo != nil {
		if err := w.BeginBlock(BlockPageInfo, 0, 0); err != nil {
			return nil, err
		}
		writePageInfoBlock(w, *tree.PageInfo)
		if err := w.EndBlock(); err != nil {
			return nil, err
		}
	}
	if tree.Info != nil {
		if err := w.BeginBlock(BlockSceneInfo, 0, 0); err != nil {
			return nil, err
		}
		writeSceneInfoBlock(w, *tree.Info)
		if err := w.EndBlock(); err != nil {
			return nil, err
		}
	}

	if err := writeGroupPreorder(w, tree.Root, CrdtID{}); err != nil {
		return nil, err
	}

	if tree.RootText != nil {
		if err := w.BeginBlock(BlockRootText, 1, 1); err != nil {
			return nil, err
		}
		if err := writeRootTextBlock(w, tree.RootTextID, tree.RootText); err != nil {
			return nil, err
		}
		if err := w.EndBlock(); err != nil {
			return nil, err
		}
	}

	return w.Bytes(), nil
}

func writeGroupPreorder(w *Writer, g *Group, parentID CrdtID) error {
	if err := w.BeginBlock(BlockSceneTree, 0, 0); err != nil {
		return err
	}
	writeSceneTreeBlock(w, SceneTreeBlock{TreeID: g.NodeID, NodeID: g.NodeID, IsUpdate: false, ParentID: parentID})
	if err := w.EndBlock(); err != nil {
		return err
	}

	if err := w.BeginBlock(BlockTreeNode, 0, 0); err != nil {
		return err
	}
	if err := writeTreeNodeBlock(w, TreeNodeBlock{
		NodeID:          g.NodeID,
		Label:           g.Label,
		Visible:         g.Visible,
		AnchorID:        g.AnchorID,
		AnchorType:      g.AnchorType,
		AnchorThreshold: g.AnchorThreshold,
		AnchorOriginX:   g.AnchorOriginX,
	}); err != nil {
		return err
	}
	if err := w.EndBlock(); err != nil {
		return err
	}

	for _, e := range g.Children.Entries() {
		blockType, version := blockTypeForItem(e.Value)
		prefix := itemPrefix{ParentID: g.NodeID, ItemID: e.ItemID, LeftID: e.LeftID, RightID: e.RightID, DeletedLength: e.DeletedLength}

		var raw rawItemValue
		hasValue := e.DeletedLength == 0
		if hasValue {
			switch e.Value.Kind {
			case SceneItemLine:
				raw = rawItemValue{kind: SceneItemLine, line: e.Value.Line}
			case SceneItemGlyphRange:
				raw = rawItemValue{kind: SceneItemGlyphRange, glyph: e.Value.GlyphRange}
			case SceneItemGroup:
				raw = rawItemValue{kind: SceneItemGroup, groupRef: e.Value.Group.NodeID}
			default:
				raw = rawItemValue{kind: SceneItemNone}
			}
		}

		if err := w.BeginBlock(blockType, 0, version); err != nil {
			return err
		}
		if err := writeSceneItemBlock(w, version, prefix, raw, hasValue); err != nil {
			return err
		}
		if err := w.EndBlock(); err != nil {
			return err
		}

		if e.Value.Kind == SceneItemGroup && e.Value.Group != nil {
			if err := writeGroupPreorder(w, e.Value.Group, g.NodeID); err != nil {
				return err
			}
		}
	}
	return nil
}
