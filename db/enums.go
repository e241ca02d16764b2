package db

import "hermannm.dev/enumnames"

type SortOrder int8

const (
	SortOrderAscending SortOrder = iota + 1
	SortOrderDescending
)

var sortOrderMap = enumnames.NewMap(map[SortOrder]string{
	SortOrderAscending:  "asc",
	SortOrderDescending: "desc",
})

var sortOrderKeywords = enumnames.NewMap(map[SortOrder]string{
	SortOrderAscending:  "ASC",
	SortOrderDescending: "DESC",
})

func (sortOrder SortOrder) IsValid() bool {
	return sortOrderMap.ContainsKey(sortOrder)
}

func (sortOrder SortOrder) String() string {
	return sortOrderMap.GetNameOrFallback(sortOrder, "INVALID_SORT_ORDER")
}

func (sortOrder SortOrder) MarshalJSON() ([]byte, error) {
	return sortOrderMap.MarshalToNameJSON(sortOrder)
}

func (sortOrder *SortOrder) UnmarshalJSON(bytes []byte) error {
	return sortOrderMap.UnmarshalFromNameJSON(bytes, sortOrder)
}

type JoinKind int8

const (
	JoinKindInner JoinKind = iota + 1
	JoinKindLeft
)

var joinKindMap = enumnames.NewMap(map[JoinKind]string{
	JoinKindInner: "inner",
	JoinKindLeft:  "left",
})

var joinKindKeywords = enumnames.NewMap(map[JoinKind]string{
	JoinKindInner: "INNER JOIN",
	JoinKindLeft:  "LEFT JOIN",
})

func (kind JoinKind) IsValid() bool {
	return joinKindMap.ContainsKey(kind)
}

func (kind JoinKind) String() string {
	return joinKindMap.GetNameOrFallback(kind, "INVALID_JOIN_KIND")
}

func (kind JoinKind) MarshalJSON() ([]byte, error) {
	return joinKindMap.MarshalToNameJSON(kind)
}

func (kind *JoinKind) UnmarshalJSON(bytes []byte) error {
	return joinKindMap.UnmarshalFromNameJSON(bytes, kind)
}
