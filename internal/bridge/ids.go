// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package bridge

// Reserved topic ids, pre-populated in every Session's handler table
// before negotiation begins. ID_PUBLISHER and ID_SUBSCRIBER are fixed
// by §4.D; the service-install ids are constructed by adding
// ID_SERVICE_{SERVER,CLIENT} to ID_{PUBLISHER,SUBSCRIBER} per §9's
// "control-flag numeric scheme" note, a protocol accident preserved
// for compatibility rather than a design property.
const (
	idRequestTopics uint16 = 0

	ID_PUBLISHER  uint16 = 10
	ID_SUBSCRIBER uint16 = 11

	ID_SERVICE_SERVER uint16 = 12
	ID_SERVICE_CLIENT uint16 = 14

	ID_PARAMETER_REQUEST uint16 = 16
	ID_LOG               uint16 = 17
	ID_TIME              uint16 = 18
)

// Derived service-install ids: the four combinations §9 calls out as
// named constants rather than inline arithmetic.
const (
	idServiceServerPublisher  = ID_SERVICE_SERVER + ID_PUBLISHER  // 22
	idServiceServerSubscriber = ID_SERVICE_SERVER + ID_SUBSCRIBER // 23
	idServiceClientPublisher  = ID_SERVICE_CLIENT + ID_PUBLISHER  // 24
	idServiceClientSubscriber = ID_SERVICE_CLIENT + ID_SUBSCRIBER // 25
)

// idStopTx is the host->device shutdown control frame's topic id.
// Numerically identical to ID_SUBSCRIBER (11): the two never collide
// because they travel in opposite directions and are never both
// present in one direction's handler table.
const idStopTx uint16 = 11
