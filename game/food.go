// food.go implements food spawning for arena games.

package game

import (
	"math/rand"
)

// FoodSettings controls food spawning behavior.
type FoodSettings struct {
	MinimumFood     int // Guaranteed minimum on board at all times
	FoodSpawnChance int // Percentage chance (0–100) to spawn extra food each turn
}

// DefaultFoodSettings matches standard Battlesnake rules (1 minimum, 15% chance each turn).
var DefaultFoodSettings = FoodSettings{MinimumFood: 1, FoodSpawnChance: 15}

// SpawnFood places food on free cells according to settings.
// If rng is nil, a deterministic hash of the turn picks the cells.
func SpawnFood(state *GameState, rng *rand.Rand, settings FoodSettings) {
	applyFoodRules(state, rng, settings, 0xDEADBEEF)
}

func applyFoodRules(state *GameState, rng *rand.Rand, settings FoodSettings, salt uint64) {
	occupied := make(map[Point]bool)
	for _, s := range state.Snakes {
		for _, p := range s.Body {
			occupied[p] = true
		}
	}
	for _, f := range state.Food {
		occupied[f] = true
	}

	spawn := func(n uint64) bool {
		var freeSpots []Point
		for y := int32(0); y <= state.Height; y++ {
			for x := int32(0); x <= state.Width; x++ {
				if !occupied[Point{X: x, Y: y}] {
					freeSpots = append(freeSpots, Point{X: x, Y: y})
				}
			}
		}
		if len(freeSpots) == 0 {
			return false
		}
		var idx int
		if rng != nil {
			idx = rng.Intn(len(freeSpots))
		} else {
			idx = int(deterministicU64Fast(uint64(state.Turn)+n, salt) % uint64(len(freeSpots)))
		}
		p := freeSpots[idx]
		state.Food = append(state.Food, p)
		occupied[p] = true
		return true
	}

	var spawned uint64
	for len(state.Food) < settings.MinimumFood {
		if !spawn(spawned) {
			break
		}
		spawned++
	}

	if settings.FoodSpawnChance > 0 {
		var roll int
		if rng != nil {
			roll = rng.Intn(100)
		} else {
			roll = int(deterministicU64Fast(uint64(state.Turn), salt^0xF00D) % 100)
		}
		if roll < settings.FoodSpawnChance {
			spawn(spawned)
		}
	}
}

// deterministicU64Fast is a splitmix64 variant.
func deterministicU64Fast(a, b uint64) uint64 {
	x := a + b
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
