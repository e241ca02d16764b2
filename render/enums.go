package render

import (
	"hermannm.dev/enumnames"
)

type ChartKind int8

const (
	ChartKindBar ChartKind = iota + 1
	ChartKindLine
)

var chartKindMap = enumnames.NewMap(map[ChartKind]string{
	ChartKindBar:  "bar",
	ChartKindLine: "line",
})

func (kind ChartKind) IsValid() bool {
	return chartKindMap.ContainsKey(kind)
}

func (kind ChartKind) String() string {
	return chartKindMap.GetNameOrFallback(kind, "INVALID_CHART_KIND")
}

func (kind ChartKind) MarshalJSON() ([]byte, error) {
	return chartKindMap.MarshalToNameJSON(kind)
}

func (kind *ChartKind) UnmarshalJSON(bytes []byte) error {
	return chartKindMap.UnmarshalFromNameJSON(bytes, kind)
}

type Orientation int8

const (
	OrientationPortrait Orientation = iota + 1
	OrientationLandscape
)

var orientationMap = enumnames.NewMap(map[Orientation]string{
	OrientationPortrait:  "portrait",
	OrientationLandscape: "landscape",
})

func (orientation Orientation) IsValid() bool {
	return orientationMap.ContainsKey(orientation)
}

func (orientation Orientation) String() string {
	return orientationMap.GetNameOrFallback(orientation, "INVALID_ORIENTATION")
}

func (orientation Orientation) MarshalJSON() ([]byte, error) {
	return orientationMap.MarshalToNameJSON(orientation)
}

func (orientation *Orientation) UnmarshalJSON(bytes []byte) error {
	return orientationMap.UnmarshalFromNameJSON(bytes, orientation)
}
