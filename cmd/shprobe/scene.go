package main

import (
	"fmt"
	"image"
	"math"

	"github.com/taigrr/shprobe/pkg/math3d"
	"github.com/taigrr/shprobe/pkg/models"
	"github.com/taigrr/shprobe/pkg/render"
)

// loadInstances loads a glTF scene, or the built-in demo scene when path is
// empty.
func loadInstances(path string) ([]models.Instance, error) {
	if path == "" {
		return demoInstances(), nil
	}
	insts, err := models.LoadScene(path)
	if err != nil {
		return nil, fmt.Errorf("load scene: %w", err)
	}
	if len(insts) == 0 {
		return nil, fmt.Errorf("load scene: %s has no mesh instances", path)
	}
	return insts, nil
}

// demoInstances is a small room-less test scene: a floor, two coloured
// boxes and a glowing sphere.
func demoInstances() []models.Instance {
	red := models.DefaultMaterial()
	red.Name = "red"
	red.BaseColor = [4]float64{0.8, 0.1, 0.1, 1}

	green := models.DefaultMaterial()
	green.Name = "green"
	green.BaseColor = [4]float64{0.1, 0.7, 0.15, 1}

	lamp := models.DefaultMaterial()
	lamp.Name = "lamp"
	lamp.BaseColor = [4]float64{0, 0, 0, 1}
	lamp.Emissive = [3]float64{4, 3.2, 1.8}

	floor := models.DefaultMaterial()
	floor.Name = "floor"
	floor.BaseColor = [4]float64{0.5, 0.5, 0.5, 1}

	return []models.Instance{
		{
			Name:      "floor",
			Mesh:      models.NewPlane("floor", 12, 12),
			Transform: math3d.Identity(),
			Material:  floor,
		},
		{
			Name:      "red_box",
			Mesh:      models.NewBox("red_box", math3d.V3(1.5, 3, 1.5)),
			Transform: math3d.Translate(math3d.V3(-2.5, 1.5, 0)),
			Material:  red,
		},
		{
			Name:      "green_box",
			Mesh:      models.NewBox("green_box", math3d.V3(1.5, 3, 1.5)),
			Transform: math3d.Translate(math3d.V3(2.5, 1.5, 0)).Mul(math3d.RotateY(math.Pi / 6)),
			Material:  green,
		},
		{
			Name:      "lamp",
			Mesh:      models.NewSphere("lamp", 0.4, 16, 8),
			Transform: math3d.Translate(math3d.V3(0, 3.5, -2)),
			Material:  lamp,
		},
	}
}

// buildScene converts loaded instances into a renderable scene. Each
// distinct base colour image becomes one shared texture.
func buildScene(insts []models.Instance) *render.Scene {
	scene := render.NewScene()
	textures := make(map[image.Image]*render.Texture)

	for _, inst := range insts {
		inst.Mesh.CalculateBounds()
		scene.Add(render.Object{
			Name:      inst.Name,
			Mesh:      inst.Mesh,
			Transform: inst.Transform,
			Material:  renderMaterial(inst.Material, textures),
		})
	}
	return scene
}

func renderMaterial(m models.Material, textures map[image.Image]*render.Texture) render.Material {
	mat := render.Material{
		Albedo:   math3d.RGB{R: m.BaseColor[0], G: m.BaseColor[1], B: m.BaseColor[2]},
		Emissive: math3d.RGB{R: m.Emissive[0], G: m.Emissive[1], B: m.Emissive[2]},
	}
	if m.BaseMap != nil {
		tex, ok := textures[m.BaseMap]
		if !ok {
			tex = render.TextureFromImage(m.BaseMap)
			textures[m.BaseMap] = tex
		}
		mat.Texture = tex
	}
	return mat
}
