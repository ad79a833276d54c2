package lexical

// ReverseIndex maps a lemmatized token to the ordered list of file IDs
// whose content contains that token. Entries preserve insertion order;
// RemoveEntry removes a single occurrence rather than all of them, so a
// token added twice for the same file needs to be removed twice to fully
// clear it.
type ReverseIndex struct {
	index map[string][]int64
}

// NewReverseIndex returns an empty ReverseIndex.
func NewReverseIndex() *ReverseIndex {
	return &ReverseIndex{index: make(map[string][]int64)}
}

// Len reports the number of distinct tokens currently indexed.
func (r *ReverseIndex) Len() int {
	return len(r.index)
}

// AddEntry records that fileID contains token.
func (r *ReverseIndex) AddEntry(token string, fileID int64) {
	r.index[token] = append(r.index[token], fileID)
}

// Lookup returns the file IDs associated with token, or nil if the token is
// unknown. The returned slice must not be mutated by the caller.
func (r *ReverseIndex) Lookup(token string) []int64 {
	return r.index[token]
}

// RemoveEntry removes the first occurrence of fileID under token, if any.
func (r *ReverseIndex) RemoveEntry(token string, fileID int64) {
	ids, ok := r.index[token]
	if !ok {
		return
	}
	for i, id := range ids {
		if id == fileID {
			r.index[token] = append(ids[:i:i], ids[i+1:]...)
			if len(r.index[token]) == 0 {
				delete(r.index, token)
			}
			return
		}
	}
}

// UpdateEntry moves fileID's association from oldToken to newToken.
func (r *ReverseIndex) UpdateEntry(oldToken, newToken string, fileID int64) {
	r.RemoveEntry(oldToken, fileID)
	r.AddEntry(newToken, fileID)
}
