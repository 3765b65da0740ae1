// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package services

import "sync"

// keyedMutex serializes work per key. The pipeline uses one lock per video
// ID so two concurrent requests for the same record cannot interleave their
// read-modify-write cycles, while different records proceed in parallel.
type keyedMutex struct {
	locks sync.Map
}

// Lock acquires the mutex for key, returning the matching unlock function.
func (k *keyedMutex) Lock(key string) func() {
	value, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
