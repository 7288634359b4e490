package pe

const maxResourceEntries = 4096

// parseResourceDirectory decodes the resource tree. The on-disk layout is a
// directory of entries whose offsets are relative to the start of the
// resource section; directory entries with the high bit set point at a
// subdirectory, others at a data entry. Well-formed trees are exactly three
// levels deep (type, name, language); the walk refuses to go deeper so a
// cyclic offset chain cannot recurse forever.
func (f *File) parseResourceDirectory(dir DataDirectory) error {
	base, err := f.offsetFromRva(dir.VirtualAddress)
	if err != nil {
		return err
	}

	visited := make(map[uint32]bool)
	root, err := f.parseResourceNode(base, dir.VirtualAddress, 0, 0, visited)
	if err != nil {
		return err
	}
	root.IsDirectory = true
	f.Resources = root
	return nil
}

func (f *File) parseResourceNode(base int, baseRva, dirOffset uint32, depth int, visited map[uint32]bool) (*ResourceNode, error) {
	if depth > maxResourceDepth {
		return nil, malformedErr("resource tree deeper than %d levels", maxResourceDepth)
	}
	if visited[dirOffset] {
		return nil, malformedErr("cycle in resource tree at offset 0x%X", dirOffset)
	}
	visited[dirOffset] = true

	var raw ImageResourceDirectory
	if err := f.r.ReadInto(&raw, base+int(dirOffset), IMAGE_SIZEOF_RESOURCE_DIRECTORY); err != nil {
		return nil, err
	}

	node := &ResourceNode{IsDirectory: true, depth: depth}

	total := int(raw.NumberOfNamedEntries) + int(raw.NumberOfIdEntries)
	if total > maxResourceEntries {
		return nil, malformedErr("resource directory claims %d entries", total)
	}

	entryOffset := base + int(dirOffset) + IMAGE_SIZEOF_RESOURCE_DIRECTORY
	for i := 0; i < total; i++ {
		var raw ImageResourceDirectoryEntry
		if err := f.r.ReadInto(&raw, entryOffset, IMAGE_SIZEOF_RESOURCE_ENTRY); err != nil {
			return nil, err
		}
		entryOffset += IMAGE_SIZEOF_RESOURCE_ENTRY

		child, err := f.parseResourceEntry(base, baseRva, raw, depth, visited)
		if err != nil {
			f.addWarning("resource entry at depth %d: %v", depth, err)
			continue
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

func (f *File) parseResourceEntry(base int, baseRva uint32, raw ImageResourceDirectoryEntry, depth int, visited map[uint32]bool) (*ResourceNode, error) {
	var node *ResourceNode

	if raw.OffsetToData&resourceHighBit != 0 {
		sub, err := f.parseResourceNode(base, baseRva, raw.OffsetToData&^resourceHighBit, depth+1, visited)
		if err != nil {
			return nil, err
		}
		node = sub
	} else {
		node = &ResourceNode{depth: depth + 1}
		if err := f.r.ReadInto(&node.Data, base+int(raw.OffsetToData), IMAGE_SIZEOF_RESOURCE_DATA_ENTRY); err != nil {
			return nil, err
		}
		if err := f.loadResourcePayload(node); err != nil {
			return nil, err
		}
	}

	// The Name field is either a numeric id or, with the high bit set, an
	// offset to a counted UTF-16 string relative to the resource base.
	if raw.Name&resourceHighBit != 0 {
		nameOffset := base + int(raw.Name&^resourceHighBit)
		length, err := f.r.U16(nameOffset)
		if err != nil {
			return nil, err
		}
		name, err := f.r.WString(nameOffset+2, int(length))
		if err != nil {
			return nil, err
		}
		node.HasName = true
		node.Name = name
	} else {
		node.ID = raw.Name
	}
	return node, nil
}

func (f *File) loadResourcePayload(node *ResourceNode) error {
	if node.Data.Size == 0 {
		return nil
	}
	offset, zeroFilled, err := f.mapper.Resolve(node.Data.OffsetToData)
	if err != nil {
		return err
	}
	if zeroFilled {
		node.ZeroFill = true
		return nil
	}
	payload, err := f.r.Bytes(offset, int(node.Data.Size))
	if err != nil {
		return err
	}
	node.Payload = payload
	return nil
}

// ResourcesByType returns the name/language subtree for the given RT_* type
// id, or nil.
func (f *File) ResourcesByType(typeID uint32) *ResourceNode {
	if f.Resources == nil {
		return nil
	}
	for _, child := range f.Resources.Children {
		if !child.HasName && child.ID == typeID {
			return child
		}
	}
	return nil
}

// WalkResources visits every leaf of the resource tree with its type, name
// and language nodes.
func (f *File) WalkResources(visit func(typeNode, nameNode, langNode *ResourceNode)) {
	if f.Resources == nil {
		return
	}
	for _, typeNode := range f.Resources.Children {
		for _, nameNode := range typeNode.Children {
			for _, langNode := range nameNode.Children {
				if !langNode.IsDirectory {
					visit(typeNode, nameNode, langNode)
				}
			}
		}
	}
}
