package client

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/DoyleJ11/voxel-client/internal/protocol"
)

type Entity struct {
	ID   string
	Name string
	Pos  mgl32.Vec3
	Vel  mgl32.Vec3
}

// View is a read-only snapshot of the remote world as of the last applied
// server state. A new View is built for every snapshot; existing Views are
// never mutated, so one can be handed to the renderer for the rest of a frame.
type View struct {
	ClientID string
	Version  uint64
	Tick     uint64
	Entities []Entity // sorted by ID
}

// Player returns this client's own entity, if it is spawned.
func (v View) Player() (Entity, bool) {
	i := sort.Search(len(v.Entities), func(i int) bool { return v.Entities[i].ID >= v.ClientID })
	if v.ClientID != "" && i < len(v.Entities) && v.Entities[i].ID == v.ClientID {
		return v.Entities[i], true
	}
	return Entity{}, false
}

func viewFromState(clientID string, st protocol.State) View {
	ents := make([]Entity, 0, len(st.Entities))
	for _, e := range st.Entities {
		ents = append(ents, Entity{
			ID:   e.ID,
			Name: e.Name,
			Pos:  mgl32.Vec3(e.Pos),
			Vel:  mgl32.Vec3(e.Vel),
		})
	}
	sort.Slice(ents, func(i, j int) bool { return ents[i].ID < ents[j].ID })
	return View{
		ClientID: clientID,
		Version:  st.Version,
		Tick:     st.Tick,
		Entities: ents,
	}
}
