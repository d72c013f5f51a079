package forum

import "course-forum-backend/internal/model"

// ReplyNode is a reply together with its direct children, oldest first.
type ReplyNode struct {
	model.Reply
	Replies []ReplyNode `json:"replies"`
}

// BuildReplyTree turns the replies of one post, sorted by creation time
// ascending, into a forest. A reply whose parent cannot be found (deleted, or
// belonging elsewhere) becomes a root. Every input reply appears exactly once
// in the result; the returned nodes share no state with the input.
func BuildReplyTree(replies []model.Reply) []ReplyNode {
	index := make(map[string]int, len(replies))
	for i := range replies {
		if _, dup := index[replies[i].ID]; !dup {
			index[replies[i].ID] = i
		}
	}

	children := make([][]int, len(replies))
	roots := make([]int, 0, len(replies))
	for i := range replies {
		if parentID := replies[i].ParentReplyID; parentID != nil {
			if p, ok := index[*parentID]; ok && p != i {
				children[p] = append(children[p], i)
				continue
			}
		}
		roots = append(roots, i)
	}

	visited := make([]bool, len(replies))
	var build func(i int) ReplyNode
	build = func(i int) ReplyNode {
		visited[i] = true
		node := ReplyNode{
			Reply:   cloneReply(replies[i]),
			Replies: make([]ReplyNode, 0, len(children[i])),
		}
		for _, c := range children[i] {
			if !visited[c] {
				node.Replies = append(node.Replies, build(c))
			}
		}
		return node
	}

	forest := make([]ReplyNode, 0, len(roots))
	for _, r := range roots {
		forest = append(forest, build(r))
	}
	// Only reachable with corrupt parent links forming a cycle.
	for i := range replies {
		if !visited[i] {
			forest = append(forest, build(i))
		}
	}
	return forest
}

func cloneReply(r model.Reply) model.Reply {
	if r.Votes != nil {
		votes := make(map[string]model.VoteType, len(r.Votes))
		for k, v := range r.Votes {
			votes[k] = v
		}
		r.Votes = votes
	}
	if r.ParentReplyID != nil {
		parent := *r.ParentReplyID
		r.ParentReplyID = &parent
	}
	if r.EditedAt != nil {
		edited := *r.EditedAt
		r.EditedAt = &edited
	}
	return r
}
