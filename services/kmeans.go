package services

import (
	"math"
	"math/rand"
)

// kmeansSeed fixes the cluster initialization so topic extraction is
// reproducible across runs. Part of the engine's determinism contract.
const kmeansSeed = 42

const kmeansMaxIterations = 50

// kmeansCluster partitions vectors into k clusters and returns the cluster
// assignment per vector. Initialization samples k distinct points with the
// fixed seed.
func kmeansCluster(vectors [][]float32, k int) []int {
	n := len(vectors)
	if k > n {
		k = n
	}
	assignments := make([]int, n)
	if k <= 1 {
		return assignments
	}

	rng := rand.New(rand.NewSource(kmeansSeed))
	centroids := initialCentroids(vectors, k, rng)

	for iter := 0; iter < kmeansMaxIterations; iter++ {
		changed := false
		for i, v := range vectors {
			best := nearestCentroid(v, centroids)
			if best != assignments[i] {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}
		recomputeCentroids(vectors, assignments, centroids)
	}
	return assignments
}

func initialCentroids(vectors [][]float32, k int, rng *rand.Rand) [][]float64 {
	perm := rng.Perm(len(vectors))
	centroids := make([][]float64, k)
	for i := 0; i < k; i++ {
		centroids[i] = toFloat64(vectors[perm[i]])
	}
	return centroids
}

func nearestCentroid(v []float32, centroids [][]float64) int {
	best := 0
	bestDist := math.MaxFloat64
	for c, centroid := range centroids {
		dist := squaredDistance(v, centroid)
		if dist < bestDist {
			bestDist = dist
			best = c
		}
	}
	return best
}

func recomputeCentroids(vectors [][]float32, assignments []int, centroids [][]float64) {
	dim := len(centroids[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for i := range sums {
		sums[i] = make([]float64, dim)
	}

	for i, v := range vectors {
		c := assignments[i]
		counts[c]++
		for j := 0; j < dim && j < len(v); j++ {
			sums[c][j] += float64(v[j])
		}
	}

	for c := range centroids {
		if counts[c] == 0 {
			continue // empty cluster keeps its previous centroid
		}
		for j := 0; j < dim; j++ {
			centroids[c][j] = sums[c][j] / float64(counts[c])
		}
	}
}

func squaredDistance(v []float32, centroid []float64) float64 {
	sum := 0.0
	n := len(v)
	if len(centroid) < n {
		n = len(centroid)
	}
	for i := 0; i < n; i++ {
		d := float64(v[i]) - centroid[i]
		sum += d * d
	}
	return sum
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
